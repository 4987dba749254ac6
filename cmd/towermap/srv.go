package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"towermap/internal/auth"
	"towermap/internal/config"
	"towermap/internal/metrics"
	"towermap/internal/server"
)

const jwksFetchTimeout = 10 * time.Second

func newSrvCmd(cfg *config.Config) *cobra.Command {
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run the towermap HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.Listen)
			if err != nil {
				return err
			}

			logger.Info("opening database", "driver", cfg.DB.Driver, "target", dbTarget(cfg))
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			images, err := openImages(cfg)
			if err != nil {
				return err
			}

			verifier, err := newVerifier(cfg)
			if err != nil {
				return err
			}

			srv := server.New(addr, st, images, logger)
			srv.SetVersion(version)
			srv.ConfigureUploads(cfg.Images.MaxUploadBytes)
			srv.ConfigureAuth(server.AuthOptions{
				Verifier:     verifier,
				APITokenHash: cfg.Auth.APITokenHash,
				SessionTTL:   cfg.SessionTTLDuration(),
			})
			if !noMetrics {
				srv.ConfigureMetrics(metrics.New())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	return cmd
}

// newVerifier returns nil when no identity provider project is configured.
func newVerifier(cfg *config.Config) (auth.TokenVerifier, error) {
	if cfg.Auth.ProjectID == "" {
		return nil, nil
	}
	jwksURL := cfg.Auth.JWKSURL
	if jwksURL == "" {
		jwksURL = auth.DefaultJWKSURL
	}
	keys := auth.NewJWKSCache(jwksURL, &http.Client{Timeout: jwksFetchTimeout}, 0)
	verifier, err := auth.NewIDTokenVerifier(cfg.Auth.ProjectID, keys)
	if err != nil {
		return nil, fmt.Errorf("configure id token verifier: %w", err)
	}
	return verifier, nil
}
