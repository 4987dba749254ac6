package main

import (
	"testing"

	"towermap/internal/config"
)

func TestAPIBaseURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{listen: "127.0.0.1:5000", want: "http://127.0.0.1:5000"},
		{listen: ":5000", want: "http://127.0.0.1:5000"},
		{listen: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{listen: "localhost:5000", want: "http://localhost:5000"},
		{listen: "https://towers.example.com/", want: "https://towers.example.com"},
	}
	for _, tt := range tests {
		cfg := &config.Config{Listen: tt.listen}
		if got := apiBaseURL(cfg); got != tt.want {
			t.Fatalf("apiBaseURL(%q) = %q, want %q", tt.listen, got, tt.want)
		}
	}
}
