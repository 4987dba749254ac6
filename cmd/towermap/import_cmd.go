package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"towermap/internal/config"
	"towermap/internal/server"
)

// importDocument is the YAML accepted by `markers import`.
//
//	markers:
//	  - text: Tower A
//	    lat: "47.37"
//	    lon: "8.54"
//	    user: alice
//	    image: photos/a.jpg
type importDocument struct {
	Markers []importRecord `yaml:"markers"`
}

type importRecord struct {
	Text  string `yaml:"text"`
	Lat   string `yaml:"lat"`
	Lon   string `yaml:"lon"`
	User  string `yaml:"user"`
	Image string `yaml:"image"`
}

func newMarkersImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		inputPath string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create markers from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}
			records, err := readImportFile(inputPath)
			if err != nil {
				return err
			}
			if dryRun {
				return writePlain("%d markers would be imported\n", len(records))
			}

			inputs, closeAll, err := importInputs(records, filepath.Dir(inputPath))
			if err != nil {
				return err
			}
			defer closeAll()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			images, err := openImages(cfg)
			if err != nil {
				return err
			}

			svc := server.NewMarkerService(st, images, slog.Default().With("component", "import"))
			result, importErr := svc.ImportMarkers(cmd.Context(), inputs)
			if *jsonOutput {
				if err := writeJSON(result); err != nil {
					return err
				}
			} else {
				_ = writePlain("created: %d of %d\n", len(result.Created), len(inputs))
			}
			return importErr
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

func readImportFile(path string) ([]importRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseImport(f)
}

func parseImport(r io.Reader) ([]importRecord, error) {
	var doc importDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no markers found in input file")
		}
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	if len(doc.Markers) == 0 {
		return nil, errors.New("no markers found in input file")
	}
	for i, rec := range doc.Markers {
		if strings.TrimSpace(rec.Text) == "" {
			return nil, fmt.Errorf("marker %d: text is required", i+1)
		}
	}
	return doc.Markers, nil
}

// importInputs opens referenced images relative to baseDir.
func importInputs(records []importRecord, baseDir string) ([]server.CreateMarkerInput, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	inputs := make([]server.CreateMarkerInput, 0, len(records))
	for i, rec := range records {
		in := server.CreateMarkerInput{Text: rec.Text, Lat: rec.Lat, Lon: rec.Lon, User: rec.User}
		if path := strings.TrimSpace(rec.Image); path != "" {
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			f, err := os.Open(path)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("marker %d: open image: %w", i+1, err)
			}
			files = append(files, f)
			in.Image = f
		}
		inputs = append(inputs, in)
	}
	return inputs, closeAll, nil
}
