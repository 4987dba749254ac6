package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// SessionResponse is the response from GET /session.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	AuthType      string `json:"auth_type,omitempty"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	Version          string `json:"version,omitempty"`
	DBDriver         string `json:"db_driver"`
	SchemaVersion    int    `json:"schema_version"`
	TotalMarkers     int64  `json:"total_markers"`
	MarkersWithImage int64  `json:"markers_with_image"`
	AuthConfigured   bool   `json:"auth_configured"`
}
