package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"towermap/internal/api"
	"towermap/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	noAutoStartEnvKey  = "TOWERMAP_NO_AUTOSTART"
)

// withClient runs fn against the configured server, starting a local one if none answers.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	cleanup, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(api.NewClient(apiBaseURL(cfg)))
}

// apiBaseURL turns the listen setting into a client URL.
func apiBaseURL(cfg *config.Config) string {
	listen := strings.TrimSpace(cfg.Listen)
	if u, err := url.Parse(listen); err == nil && u.Scheme != "" && u.Host != "" {
		return strings.TrimRight(listen, "/")
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(apiBaseURL(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx); err == nil {
		return nil, nil
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(noAutoStartEnvKey)), "true") {
		return nil, nil
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	return func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}, nil
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv", "--no-metrics")
	cmd.Env = append(os.Environ(),
		"TOWERMAP_LISTEN="+cfg.Listen,
		"TOWERMAP_DB_PATH="+cfg.DB.Path,
		"TOWERMAP_IMAGES_DIR="+cfg.Images.Dir,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			// Something else owns the port.
			return err
		}
		time.Sleep(serverPollInterval)
	}
	return errors.New("server did not start in time")
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
