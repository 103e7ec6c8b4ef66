package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metrics"
	"github.com/aura-webinar/videoscribe/internal/models"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

// Events pushed to the uploading user's realtime session.
const (
	EventUploadProgress = "upload_progress"
	EventVideoStatus    = "video_status"
)

var (
	// ErrInvalidTransition is returned when a record would leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyTranscript is recorded when a transcriber returns neither a transcript nor an error.
	ErrEmptyTranscript = errors.New("transcriber returned no transcript")
)

// BlobStore is the subset of storage.S3 used to store video bytes.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, onProgress storage.ProgressFunc) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// MetadataWriter persists VideoRecords.
type MetadataWriter interface {
	Save(ctx context.Context, rec *models.VideoRecord) error
}

// Transcriber turns a media URL into a transcript. It blocks until the remote job finishes.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (*models.Transcript, error)
}

// Notifier delivers an event to every session of one user.
type Notifier interface {
	NotifyUser(userID uuid.UUID, event string, payload interface{})
}

// UploadInput describes one incoming file.
type UploadInput struct {
	UserID      uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProgressEvent is the payload of upload_progress.
type ProgressEvent struct {
	VideoID string `json:"video_id"`
	Bytes   int64  `json:"bytes"`
	Total   int64  `json:"total"`
	Percent int    `json:"percent"`
}

// StatusEvent is the payload of video_status.
type StatusEvent struct {
	VideoID string             `json:"video_id"`
	Status  models.VideoStatus `json:"status"`
	Error   string             `json:"error,omitempty"`
}

// Pipeline drives a video from upload to transcript.
type Pipeline struct {
	blobs       BlobStore
	meta        MetadataWriter
	transcriber Transcriber
	cache       cache.Cache
	notifier    Notifier // optional
	metrics     *metrics.Metrics
	logger      *zap.Logger
	maxBytes    int64
	now         func() time.Time
}

// NewPipeline creates an upload pipeline. m may be nil (metrics.DefaultMetrics is used).
func NewPipeline(blobs BlobStore, meta MetadataWriter, transcriber Transcriber, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Pipeline{
		blobs:       blobs,
		meta:        meta,
		transcriber: transcriber,
		cache:       c,
		metrics:     m,
		logger:      logger,
		maxBytes:    storage.MaxVideoFileSize,
		now:         time.Now,
	}
}

// SetNotifier sets the optional realtime notifier for progress and status events.
func (p *Pipeline) SetNotifier(n Notifier) { p.notifier = n }

// SetMaxBytes overrides the upload ceiling.
func (p *Pipeline) SetMaxBytes(n int64) {
	if n > 0 {
		p.maxBytes = n
	}
}

// MaxBytes returns the upload ceiling.
func (p *Pipeline) MaxBytes() int64 { return p.maxBytes }

// Validate checks an upload before any bytes are read.
func (p *Pipeline) Validate(contentType string, size int64) error {
	return storage.ValidateVideoUploadLimit(contentType, size, p.maxBytes)
}

// Run uploads and then transcribes synchronously.
func (p *Pipeline) Run(ctx context.Context, in UploadInput) (*models.VideoRecord, error) {
	rec, err := p.Upload(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.Transcribe(ctx, in.UserID, *rec)
}

// Upload validates, stores the bytes and writes the first metadata document. The returned
// record is in processing. Failures before that point are recorded in the cache only.
func (p *Pipeline) Upload(ctx context.Context, in UploadInput) (*models.VideoRecord, error) {
	if err := p.Validate(in.ContentType, in.Size); err != nil {
		p.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	now := p.now().UTC()
	rec := &models.VideoRecord{
		ID:         models.NewVideoID(now),
		Name:       path.Base(in.Filename),
		Size:       in.Size,
		UploadedAt: now,
		Status:     models.VideoStatusUploading,
	}
	key := storage.VideoKey(rec.ID, in.Filename)
	p.cache.Put(ctx, *rec)
	p.notifyStatus(in.UserID, rec)

	onProgress := func(read, total int64) {
		p.notify(in.UserID, EventUploadProgress, ProgressEvent{
			VideoID: rec.ID,
			Bytes:   read,
			Total:   total,
			Percent: storage.Percent(read, total),
		})
	}
	if err := p.blobs.Upload(ctx, key, storage.NormalizeContentType(in.ContentType), in.Body, in.Size, onProgress); err != nil {
		return nil, p.fail(ctx, in.UserID, rec, fmt.Errorf("upload video: %w", err))
	}
	url, err := p.blobs.DownloadURL(ctx, key)
	if err != nil {
		return nil, p.fail(ctx, in.UserID, rec, fmt.Errorf("resolve video url: %w", err))
	}

	if err := transition(rec, models.VideoStatusProcessing); err != nil {
		return nil, err
	}
	rec.URL = url
	if err := p.meta.Save(ctx, rec); err != nil {
		return nil, p.fail(ctx, in.UserID, rec, err)
	}
	p.cache.Put(ctx, *rec)
	p.notifyStatus(in.UserID, rec)

	p.metrics.UploadsTotal.WithLabelValues("ok").Inc()
	p.metrics.UploadBytes.Add(float64(in.Size))
	p.logger.Info("video uploaded", zap.String("video_id", rec.ID), zap.String("key", key), zap.Int64("size", in.Size))
	return rec, nil
}

// Transcribe submits a processing record for transcription and writes the final metadata
// document. A remote transcription failure is not an error: the record ends in status error.
// If ctx is cancelled the record is left in processing and nothing is written.
func (p *Pipeline) Transcribe(ctx context.Context, userID uuid.UUID, rec models.VideoRecord) (*models.VideoRecord, error) {
	if rec.Status != models.VideoStatusProcessing {
		return nil, fmt.Errorf("%w: transcribe from %s", ErrInvalidTransition, rec.Status)
	}
	tr, err := p.transcriber.Transcribe(ctx, rec.URL)
	if err != nil && ctx.Err() != nil {
		p.logger.Warn("transcription abandoned", zap.String("video_id", rec.ID), zap.Error(err))
		return nil, err
	}
	if err == nil && tr == nil {
		err = ErrEmptyTranscript
	}

	next := models.VideoStatusCompleted
	switch {
	case err != nil:
		next = models.VideoStatusError
		rec.Error = err.Error()
	case tr.Status == models.TranscriptStatusError:
		next = models.VideoStatusError
		rec.Error = tr.Error
		rec.Transcript = tr
	default:
		rec.Transcript = tr
	}
	if terr := transition(&rec, next); terr != nil {
		return nil, terr
	}

	p.cache.Put(ctx, rec)
	p.metrics.Transcriptions.WithLabelValues(string(rec.Status)).Inc()
	if err != nil {
		p.logger.Error("transcription failed", zap.String("video_id", rec.ID), zap.Error(err))
	}
	if serr := p.meta.Save(ctx, &rec); serr != nil {
		p.logger.Error("save final metadata failed", zap.String("video_id", rec.ID), zap.Error(serr))
		p.notifyStatus(userID, &rec)
		return &rec, serr
	}
	p.notifyStatus(userID, &rec)
	p.logger.Info("video transcribed", zap.String("video_id", rec.ID), zap.String("status", string(rec.Status)))
	return &rec, nil
}

// fail moves rec to error in the cache and reports it. No metadata is written.
func (p *Pipeline) fail(ctx context.Context, userID uuid.UUID, rec *models.VideoRecord, cause error) error {
	if transition(rec, models.VideoStatusError) == nil {
		rec.Error = cause.Error()
	}
	p.cache.Put(ctx, *rec)
	p.notifyStatus(userID, rec)
	p.metrics.UploadsTotal.WithLabelValues("failed").Inc()
	p.logger.Error("video upload failed", zap.String("video_id", rec.ID), zap.Error(cause))
	return cause
}

func transition(rec *models.VideoRecord, next models.VideoStatus) error {
	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, next)
	}
	rec.Status = next
	return nil
}

func (p *Pipeline) notifyStatus(userID uuid.UUID, rec *models.VideoRecord) {
	p.notify(userID, EventVideoStatus, StatusEvent{VideoID: rec.ID, Status: rec.Status, Error: rec.Error})
}

func (p *Pipeline) notify(userID uuid.UUID, event string, payload interface{}) {
	if p.notifier == nil || userID == uuid.Nil {
		return
	}
	p.notifier.NotifyUser(userID, event, payload)
}
