package main

import (
	"fmt"
	"io"
	"os"

	"towermap/internal/format"
	"towermap/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeMarkerList(w io.Writer, markers []models.Marker) error {
	for _, m := range markers {
		if _, err := fmt.Fprintln(w, formatMarkerLine(m)); err != nil {
			return err
		}
	}
	return nil
}

func formatMarkerLine(m models.Marker) string {
	line := fmt.Sprintf("%d  %s,%s  %s  %q", m.ID, m.Lat, m.Lon, m.User, m.Text)
	if m.HasImage() {
		line += "  " + *m.ImageRef
	}
	return line
}
