package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"towermap/internal/blobstore"
	"towermap/internal/metrics"
	"towermap/internal/models"
	"towermap/internal/store"
)

// MarkerService pairs marker rows with their image blobs.
//
// The database and the image directory are not transactionally coupled.
// Create writes the blob first and removes it again if the row insert fails.
// Delete removes the blob first and keeps the row if that fails.
type MarkerService struct {
	store   store.MarkerStore
	blobs   blobstore.BlobStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CreateMarkerInput carries client-submitted marker fields.
type CreateMarkerInput struct {
	Text  string
	Lat   string
	Lon   string
	User  string
	Image io.Reader
}

// ImportResult reports markers created by ImportMarkers.
type ImportResult struct {
	Created []models.Marker `json:"created"`
}

// NewMarkerService constructs a MarkerService.
func NewMarkerService(markerStore store.MarkerStore, blobs blobstore.BlobStore, logger *slog.Logger) *MarkerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkerService{store: markerStore, blobs: blobs, logger: logger}
}

// SetMetrics attaches lifecycle counters.
func (s *MarkerService) SetMetrics(m *metrics.Metrics) {
	if s != nil {
		s.metrics = m
	}
}

// CreateMarker assigns an id, stores the optional image and inserts the row.
func (s *MarkerService) CreateMarker(ctx context.Context, in CreateMarkerInput) (models.Marker, error) {
	var zero models.Marker
	if s == nil || s.store == nil {
		return zero, internalError(fmt.Errorf("marker service is not configured"))
	}

	id, err := s.store.NextMarkerID(ctx)
	if err != nil {
		s.metrics.MarkerFailed("create")
		return zero, storeFailure(err)
	}

	marker := models.Marker{
		ID:   id,
		Text: in.Text,
		Lat:  in.Lat,
		Lon:  in.Lon,
		User: models.NormalizeUser(in.User),
	}

	if in.Image != nil {
		if s.blobs == nil {
			return zero, internalError(fmt.Errorf("image storage is not configured"))
		}
		ref, err := s.blobs.Put(ctx, marker.User, id, in.Image)
		if err != nil {
			s.metrics.MarkerFailed("create")
			// The stored file belongs to another marker; leave it alone.
			if errors.Is(err, blobstore.ErrExists) {
				return zero, conflictCode(fmt.Errorf("image for marker id %d already exists: %w", id, err), ErrCodeMarkerIDExists)
			}
			return zero, blobFailure(err)
		}
		marker.ImageRef = &ref
	}

	if err := s.store.InsertMarker(ctx, &marker); err != nil {
		s.metrics.MarkerFailed("create")
		if marker.HasImage() {
			s.removeOrphanBlob(ctx, marker.ImageRefOrEmpty())
		}
		if errors.Is(err, store.ErrDuplicateID) {
			return zero, conflictCode(err, ErrCodeMarkerIDExists)
		}
		return zero, storeFailure(err)
	}

	s.metrics.MarkerCreated()
	s.logger.Debug("marker created", "id", marker.ID, "user", marker.User, "image", marker.HasImage())
	return marker, nil
}

func (s *MarkerService) removeOrphanBlob(ctx context.Context, ref string) {
	// The request may already be cancelled; cleanup still has to run.
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Error("remove orphaned image", "ref", ref, "error", err)
		return
	}
	s.metrics.OrphanBlobRemoved()
}

// ListMarkers returns every marker. Storage failures are logged and yield an empty list.
func (s *MarkerService) ListMarkers(ctx context.Context) []models.Marker {
	if s == nil || s.store == nil {
		return []models.Marker{}
	}
	markers, err := s.store.ListMarkers(ctx)
	if err != nil {
		s.metrics.ListFailed()
		s.logger.Error("list markers", "error", err)
		return []models.Marker{}
	}
	if markers == nil {
		return []models.Marker{}
	}
	return markers
}

// DeleteMarker removes the marker's image and row and reports whether the row existed.
func (s *MarkerService) DeleteMarker(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.store == nil {
		return false, internalError(fmt.Errorf("marker service is not configured"))
	}

	ref, found, err := s.store.FindImageRef(ctx, id)
	if err != nil {
		s.metrics.MarkerFailed("delete")
		return false, storeFailure(err)
	}

	if found && strings.TrimSpace(ref) != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			if !errors.Is(err, blobstore.ErrInvalidReference) {
				s.metrics.MarkerFailed("delete")
				return false, blobFailure(err)
			}
			// Rows written by the legacy app hold absolute paths; the row goes, the file stays.
			s.logger.Warn("skip image outside images directory", "id", id, "ref", ref)
		}
	}

	existed, err := s.store.DeleteMarker(ctx, id)
	if err != nil {
		s.metrics.MarkerFailed("delete")
		return false, storeFailure(err)
	}
	if existed {
		s.metrics.MarkerDeleted()
		s.logger.Debug("marker deleted", "id", id)
	}
	return existed, nil
}

// OpenImage opens a stored image by its bare filename.
func (s *MarkerService) OpenImage(ctx context.Context, filename string) (io.ReadCloser, error) {
	if s == nil || s.blobs == nil {
		return nil, internalError(fmt.Errorf("image storage is not configured"))
	}
	rc, err := s.blobs.Open(ctx, blobstore.ReferencePrefix+filename)
	if err != nil {
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			return nil, notFoundCode(fmt.Errorf("image not found"), ErrCodeImageNotFound)
		case errors.Is(err, blobstore.ErrInvalidReference):
			return nil, notFoundCode(fmt.Errorf("image not found"), ErrCodeInvalidFilename)
		default:
			return nil, blobFailure(err)
		}
	}
	return rc, nil
}

// ImportMarkers creates markers in order and stops at the first failure.
// Markers created before the failure are kept and returned.
func (s *MarkerService) ImportMarkers(ctx context.Context, inputs []CreateMarkerInput) (ImportResult, error) {
	result := ImportResult{Created: make([]models.Marker, 0, len(inputs))}
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		marker, err := s.CreateMarker(ctx, in)
		if err != nil {
			return result, importFailure(i+1, err)
		}
		result.Created = append(result.Created, marker)
	}
	return result, nil
}
