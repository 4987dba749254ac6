package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Markers.
	mux.Handle("POST /data", s.withAuth(http.HandlerFunc(s.handleCreateMarker)))
	mux.HandleFunc("GET /get_markers", s.handleListMarkers)
	mux.HandleFunc("POST /delete", s.handleDeleteMarker)
	mux.HandleFunc("GET /images/{filename}", s.handleImage)

	// Sign-in.
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("GET /guest", s.handleGuest)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /session", s.handleSession)

	return mux
}
