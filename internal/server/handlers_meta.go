package server

import (
	"context"
	"net/http"

	"towermap/internal/api"
)

type driverInfo interface {
	Driver() string
	SchemaVersion(ctx context.Context) (int, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := s.markerStore.MarkerStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		Version:          s.version,
		TotalMarkers:     stats.Total,
		MarkersWithImage: stats.WithImages,
		AuthConfigured:   s.verifier != nil || s.apiTokenHash != "",
	}
	if d, ok := s.markerStore.(driverInfo); ok {
		resp.DBDriver = d.Driver()
		version, err := d.SchemaVersion(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.SchemaVersion = version
	}

	s.writeJSON(w, http.StatusOK, resp)
}
