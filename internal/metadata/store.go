// Package metadata persists one JSON document per video under the metadata/ prefix.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/models"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

// ErrNotFound is returned when no metadata document exists for an id.
var ErrNotFound = errors.New("metadata not found")

// ObjectStore is the subset of storage.S3 the metadata store needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// Store reads and writes VideoRecord documents.
type Store struct {
	objects ObjectStore
	logger  *zap.Logger
}

// NewStore creates a metadata store.
func NewStore(objects ObjectStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{objects: objects, logger: logger}
}

// Save writes metadata/{id}.json, replacing any previous document.
func (s *Store) Save(ctx context.Context, rec *models.VideoRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("save metadata: record id required")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.objects.PutObject(ctx, storage.MetadataKey(rec.ID), "application/json", body); err != nil {
		return fmt.Errorf("save metadata %s: %w", rec.ID, err)
	}
	s.logger.Debug("metadata saved", zap.String("video_id", rec.ID), zap.String("status", string(rec.Status)))
	return nil
}

// Get reads metadata/{id}.json.
func (s *Store) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	return s.read(ctx, storage.MetadataKey(id))
}

// List fetches every metadata document. A listing failure is returned; documents that
// cannot be read or decoded are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]models.VideoRecord, error) {
	objects, err := s.objects.ListObjects(ctx, storage.FolderMetadata)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	records := make([]models.VideoRecord, 0, len(objects))
	for _, obj := range objects {
		if !strings.EqualFold(path.Ext(obj.Key), ".json") {
			continue
		}
		rec, err := s.read(ctx, obj.Key)
		if err != nil {
			s.logger.Warn("skip unreadable metadata document", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *Store) read(ctx context.Context, key string) (*models.VideoRecord, error) {
	body, err := s.objects.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata %s: %w", key, err)
	}
	var rec models.VideoRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", key, err)
	}
	return &rec, nil
}
