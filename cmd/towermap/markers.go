package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"towermap/internal/api"
	"towermap/internal/config"
	"towermap/internal/format"
	"towermap/internal/models"
)

func newMarkersCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "List, delete, export and import markers",
	}
	cmd.AddCommand(
		newMarkersListCmd(cfg, jsonOutput),
		newMarkersRmCmd(cfg),
		newMarkersExportCmd(cfg),
		newMarkersImportCmd(cfg, jsonOutput),
	)
	return cmd
}

func newMarkersListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List markers from the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				markers, err := client.ListMarkers(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(markers)
				}
				return writeMarkerList(os.Stdout, markers)
			})
		},
	}
}

func newMarkersRmCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> [<id>...]",
		Short: "Delete markers and their images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMarkerIDs(args)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				for _, id := range ids {
					if err := client.DeleteMarker(cmd.Context(), id); err != nil {
						return fmt.Errorf("delete %d: %w", id, err)
					}
					_ = writePlain("deleted %d\n", id)
				}
				return nil
			})
		},
	}
}

func newMarkersExportCmd(cfg *config.Config) *cobra.Command {
	var (
		outputPath string
		formatName string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every marker from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := format.ByName(formatName)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			markers, err := st.ListMarkers(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return formatter.Write(w, markerDocument{Markers: markers})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "yaml", "output format: yaml|json")
	return cmd
}

// markerDocument is the export layout.
type markerDocument struct {
	Markers []models.Marker `json:"markers" yaml:"markers"`
}

func parseMarkerIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid marker id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
