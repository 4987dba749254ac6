package main

import (
	"context"
	"errors"
	"net"

	"towermap/internal/api"
	"towermap/internal/server"
	"towermap/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.AuthFailure():
			lines = append(lines, "hint: set TOWERMAP_API_TOKEN to a token whose hash is configured as auth.api_token_hash.")
		case apiErr.ServerFault():
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		case apiErr.Code == "resource_exhausted":
			lines = append(lines, "hint: too many failed sign-in attempts; retry in a few minutes.")
		case !apiErr.Structured():
			lines = append(lines, "hint: verify the listen setting points to a towermap server.")
		}
		return uniqueLines(lines)
	}

	if server.IsImportFailure(err) {
		lines = append(lines, "hint: markers before the failing entry were created; remove them from the file before retrying.")
	}

	var storageErr *store.StorageError
	if errors.As(err, &storageErr) {
		lines = append(lines, "hint: check db.* settings with: towermap config get db.driver")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TOWERMAP_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a towermap server is running at the configured listen address.",
			"hint: start a server manually with: towermap srv",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
