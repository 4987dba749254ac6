package main

import (
	"github.com/spf13/cobra"

	"towermap/internal/api"
	"towermap/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server, schema and marker counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Info(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("server: %s\n", apiBaseURL(cfg))
				if resp.Version != "" {
					_ = writePlain("version: %s\n", resp.Version)
				}
				_ = writePlain("db_driver: %s\n", resp.DBDriver)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("total_markers: %d\n", resp.TotalMarkers)
				_ = writePlain("markers_with_image: %d\n", resp.MarkersWithImage)
				return writePlain("auth_configured: %t\n", resp.AuthConfigured)
			})
		},
	}
}
