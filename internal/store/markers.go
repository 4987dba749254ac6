package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"towermap/internal/models"
)

const markerSequenceName = "markers"

// MarkerStats summarizes the markers table.
type MarkerStats struct {
	Total      int64 `json:"total"`
	WithImages int64 `json:"with_images"`
}

// NextMarkerID reserves the next marker identifier.
// Reserved ids are never handed out again, even when the marker is deleted
// or the insert that would have used it fails.
func (s *Store) NextMarkerID(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "next id", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var (
		seq    sql.NullInt64
		seqRow = true
	)
	err = tx.QueryRowContext(ctx, "SELECT next_id FROM marker_sequence WHERE name = ?"+s.dialect.forUpdate, markerSequenceName).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		seqRow = false
	} else if err != nil {
		return 0, &StorageError{Op: "next id", Err: err}
	}

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(id) FROM markers").Scan(&maxID); err != nil {
		return 0, &StorageError{Op: "next id", Err: err}
	}

	next := models.MarkerIDFloor
	if maxID.Valid && maxID.Int64+1 > next {
		next = maxID.Int64 + 1
	}
	if seq.Valid && seq.Int64 > next {
		next = seq.Int64
	}

	if seqRow {
		_, err = tx.ExecContext(ctx, "UPDATE marker_sequence SET next_id = ? WHERE name = ?", next+1, markerSequenceName)
	} else {
		_, err = tx.ExecContext(ctx, "INSERT INTO marker_sequence (name, next_id) VALUES (?, ?)", markerSequenceName, next+1)
	}
	if err != nil {
		return 0, &StorageError{Op: "next id", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "next id", Err: err}
	}
	return next, nil
}

// InsertMarker stores a marker under its already-reserved id.
func (s *Store) InsertMarker(ctx context.Context, marker *models.Marker) error {
	if marker == nil {
		return &StorageError{Op: "insert marker", Err: errors.New("marker is nil")}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO markers (text, lat, lon, user, url, id) VALUES (?, ?, ?, ?, ?, ?)",
		marker.Text, marker.Lat, marker.Lon, marker.User, nullIfEmpty(marker.ImageRefOrEmpty()), marker.ID,
	)
	if err != nil {
		if s.dialect.isDuplicateKey(err) {
			return fmt.Errorf("%w: %d", ErrDuplicateID, marker.ID)
		}
		return &StorageError{Op: "insert marker", Err: err}
	}
	return nil
}

// ListMarkers returns every marker ordered by id.
func (s *Store) ListMarkers(ctx context.Context) ([]models.Marker, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, text, lat, lon, user, url FROM markers ORDER BY id")
	if err != nil {
		return nil, &StorageError{Op: "list markers", Err: err}
	}
	defer rows.Close()

	markers := []models.Marker{}
	for rows.Next() {
		var (
			m                    models.Marker
			text, lat, lon, user sql.NullString
			url                  sql.NullString
		)
		if err := rows.Scan(&m.ID, &text, &lat, &lon, &user, &url); err != nil {
			return nil, &StorageError{Op: "list markers", Err: err}
		}
		m.Text = text.String
		m.Lat = lat.String
		m.Lon = lon.String
		m.User = user.String
		if url.Valid {
			m.ImageRef = models.StringRef(url.String)
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list markers", Err: err}
	}
	return markers, nil
}

// FindImageRef returns the image reference for a marker. The boolean is false
// when the marker does not exist; an existing marker without an image yields
// an empty reference.
func (s *Store) FindImageRef(ctx context.Context, id int64) (string, bool, error) {
	var url sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT url FROM markers WHERE id = ?", id).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "find image", Err: err}
	}
	return url.String, true, nil
}

// DeleteMarker removes a marker row and reports whether it existed.
func (s *Store) DeleteMarker(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM markers WHERE id = ?", id)
	if err != nil {
		return false, &StorageError{Op: "delete marker", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete marker", Err: err}
	}
	return n > 0, nil
}

// MarkerStats counts markers and markers carrying an image.
func (s *Store) MarkerStats(ctx context.Context) (MarkerStats, error) {
	var stats MarkerStats
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(url) FROM markers").Scan(&stats.Total, &stats.WithImages)
	if err != nil {
		return MarkerStats{}, &StorageError{Op: "marker stats", Err: err}
	}
	return stats, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
