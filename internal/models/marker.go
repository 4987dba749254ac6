package models

import "strings"

const (
	// MarkerIDFloor is the first identifier issued to an empty markers table.
	MarkerIDFloor int64 = 100000

	// GuestUser is the display name recorded for anonymous sessions.
	GuestUser = "Guest"
)

// Marker is a user-submitted geolocated annotation.
//
// Lat and Lon are kept as the text the client sent; no numeric validation is applied.
type Marker struct {
	ID       int64   `json:"id" yaml:"id"`
	Text     string  `json:"text" yaml:"text"`
	Lat      string  `json:"lat" yaml:"lat"`
	Lon      string  `json:"lon" yaml:"lon"`
	User     string  `json:"user" yaml:"user"`
	ImageRef *string `json:"url" yaml:"url,omitempty"`
}

// HasImage reports whether the marker references a stored image.
func (m Marker) HasImage() bool {
	return m.ImageRef != nil && strings.TrimSpace(*m.ImageRef) != ""
}

// ImageRefOrEmpty returns the image reference or "".
func (m Marker) ImageRefOrEmpty() string {
	if m.ImageRef == nil {
		return ""
	}
	return *m.ImageRef
}

// NormalizeUser trims a display name and falls back to GuestUser.
func NormalizeUser(raw string) string {
	user := strings.TrimSpace(raw)
	if user == "" {
		return GuestUser
	}
	return user
}

// StringRef returns a pointer to value, or nil when value is empty.
func StringRef(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
