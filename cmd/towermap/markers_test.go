package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"towermap/internal/models"
)

func TestParseImport(t *testing.T) {
	input := `markers:
  - text: Tower A
    lat: "47.37"
    lon: "8.54"
    user: alice
  - text: Tower B
    image: photos/b.jpg
`
	records, err := parseImport(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse import: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Lat != "47.37" || records[0].User != "alice" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Image != "photos/b.jpg" {
		t.Fatalf("unexpected image path: %q", records[1].Image)
	}
}

func TestParseImportRejects(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no markers":    "markers: []\n",
		"missing text":  "markers:\n  - lat: \"1\"\n",
		"unknown field": "markers:\n  - text: a\n    colour: red\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseImport(strings.NewReader(input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestImportInputsOpensImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "photos"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "photos", "b.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	inputs, closeAll, err := importInputs([]importRecord{{Text: "a"}, {Text: "b", Image: "photos/b.jpg"}}, dir)
	if err != nil {
		t.Fatalf("import inputs: %v", err)
	}
	defer closeAll()

	if inputs[0].Image != nil {
		t.Fatal("expected no image for first record")
	}
	data, err := io.ReadAll(inputs[1].Image)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(data) != "jpeg" {
		t.Fatalf("unexpected image data %q", data)
	}

	if _, _, err := importInputs([]importRecord{{Text: "c", Image: "missing.jpg"}}, dir); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestParseMarkerIDs(t *testing.T) {
	ids, err := parseMarkerIDs([]string{"100000", "100001"})
	if err != nil {
		t.Fatalf("parse ids: %v", err)
	}
	if len(ids) != 2 || ids[1] != 100001 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := parseMarkerIDs([]string{"abc"}); err == nil {
		t.Fatal("expected error for non numeric id")
	}
}

func TestWriteMarkerList(t *testing.T) {
	ref := "/images/bob-100002.jpg"
	var buf bytes.Buffer
	err := writeMarkerList(&buf, []models.Marker{
		{ID: 100000, Text: "Tower A", Lat: "1", Lon: "2", User: "Guest"},
		{ID: 100002, Text: "photo", Lat: "3", Lon: "4", User: "bob", ImageRef: &ref},
	})
	if err != nil {
		t.Fatalf("write list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "100000  1,2  Guest") || !strings.HasSuffix(lines[1], ref) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
