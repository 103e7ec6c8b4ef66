package videos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metadata"
	"github.com/aura-webinar/videoscribe/internal/metrics"
	"github.com/aura-webinar/videoscribe/internal/models"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

// BlobLister lists stored video objects and resolves their download URLs.
type BlobLister interface {
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// MetadataSource reads metadata documents.
type MetadataSource interface {
	List(ctx context.Context) ([]models.VideoRecord, error)
	Get(ctx context.Context, id string) (*models.VideoRecord, error)
}

// ListResult is the outcome of a non-failing list. Degraded is set when the videos come
// from the cache because storage could not be listed.
type ListResult struct {
	Videos   []models.VideoRecord
	Degraded bool
}

// Reconciler merges the videos/ and metadata/ namespaces into VideoRecords.
type Reconciler struct {
	blobs   BlobLister
	meta    MetadataSource
	cache   cache.Cache
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReconciler creates a reconciler. m may be nil (metrics.DefaultMetrics is used).
func NewReconciler(blobs BlobLister, meta MetadataSource, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Reconciler{blobs: blobs, meta: meta, cache: c, metrics: m, logger: logger, now: time.Now}
}

// List reconciles storage and never fails: on any storage error it returns the cached
// records, sorted newest first, and marks the result degraded.
func (r *Reconciler) List(ctx context.Context) ListResult {
	videos, err := r.Reconcile(ctx)
	if err == nil {
		return ListResult{Videos: videos}
	}
	r.metrics.ReconcileFallbacks.Inc()
	r.logger.Warn("reconcile failed, serving cached videos", zap.Error(err))
	cached := r.cache.List(ctx)
	sortNewestFirst(cached)
	if cached == nil {
		cached = []models.VideoRecord{}
	}
	return ListResult{Videos: cached, Degraded: true}
}

// Reconcile builds the deduplicated, newest-first list of videos. It fails only when a
// namespace cannot be listed or a blob URL cannot be resolved.
func (r *Reconciler) Reconcile(ctx context.Context) ([]models.VideoRecord, error) {
	r.metrics.ReconcileRuns.Inc()

	blobs, err := r.blobs.ListObjects(ctx, storage.FolderVideos)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	docs, err := r.meta.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	byURL := make(map[string]models.VideoRecord, len(docs))
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		byURL[models.CanonicalURL(doc.URL)] = doc
	}

	merged := make(map[string]resolved, len(blobs))
	for _, blob := range blobs {
		url, err := r.blobs.DownloadURL(ctx, blob.Key)
		if err != nil {
			return nil, fmt.Errorf("resolve url %s: %w", blob.Key, err)
		}
		res := r.resolve(ctx, blob, url, byURL)

		existing, ok := merged[res.rec.ID]
		if !ok {
			merged[res.rec.ID] = res
			continue
		}
		r.metrics.ReconcileCollisions.Inc()
		r.logger.Warn("video id collision", zap.String("video_id", res.rec.ID), zap.String("key", blob.Key))
		if res.rec.HasTranscriptText() && !existing.rec.HasTranscriptText() {
			merged[res.rec.ID] = res
		}
	}

	out := make([]models.VideoRecord, 0, len(merged))
	for _, res := range merged {
		out = append(out, res.rec)
		// a time-derived id differs on every run
		if res.stableID {
			r.cache.Put(ctx, res.rec)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// RefreshURL re-resolves rec.URL from the video key embedded in it, so stored documents
// never hand out an expired presigned URL. On failure rec is returned unchanged.
func (r *Reconciler) RefreshURL(ctx context.Context, rec models.VideoRecord) models.VideoRecord {
	key, ok := storage.VideoKeyFromURL(rec.URL)
	if !ok {
		return rec
	}
	url, err := r.blobs.DownloadURL(ctx, key)
	if err != nil {
		r.logger.Warn("refresh video url failed", zap.String("video_id", rec.ID), zap.String("key", key), zap.Error(err))
		return rec
	}
	rec.URL = url
	return rec
}

type resolved struct {
	rec      models.VideoRecord
	stableID bool
}

// resolve picks the record for one blob. Tiers in order: metadata by canonical URL,
// metadata by derived id, cache by derived id, synthesized from the blob.
func (r *Reconciler) resolve(ctx context.Context, blob storage.ObjectInfo, url string, byURL map[string]models.VideoRecord) resolved {
	id, name, stable := models.ParseBlobName(blob.Name(), r.now())

	if doc, ok := byURL[models.CanonicalURL(url)]; ok {
		r.metrics.ReconcileResolutions.WithLabelValues(metrics.TierURL).Inc()
		doc.ID = id
		doc.URL = url
		doc.Size = blob.Size
		return resolved{doc, stable}
	}

	doc, err := r.meta.Get(ctx, id)
	switch {
	case err == nil && doc != nil:
		r.metrics.ReconcileResolutions.WithLabelValues(metrics.TierID).Inc()
		rec := *doc
		rec.URL = url
		rec.Size = blob.Size
		return resolved{rec, stable}
	case err != nil && !errors.Is(err, metadata.ErrNotFound):
		r.logger.Warn("metadata lookup by id failed", zap.String("video_id", id), zap.Error(err))
	}

	if cached, ok := r.cache.Get(ctx, id); ok {
		r.metrics.ReconcileResolutions.WithLabelValues(metrics.TierCache).Inc()
		cached.URL = url
		return resolved{cached, stable}
	}

	r.metrics.ReconcileResolutions.WithLabelValues(metrics.TierSynthesized).Inc()
	return resolved{models.VideoRecord{
		ID:         id,
		Name:       name,
		URL:        url,
		Size:       blob.Size,
		UploadedAt: blob.LastModified,
		Status:     models.VideoStatusCompleted,
	}, stable}
}

func sortNewestFirst(videos []models.VideoRecord) {
	sort.SliceStable(videos, func(i, j int) bool {
		if !videos[i].UploadedAt.Equal(videos[j].UploadedAt) {
			return videos[i].UploadedAt.After(videos[j].UploadedAt)
		}
		return videos[i].ID > videos[j].ID
	})
}
