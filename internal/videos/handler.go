package videos

import (
	"context"
	"errors"
	"net/http"
	"path"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metadata"
	"github.com/aura-webinar/videoscribe/internal/middleware"
	"github.com/aura-webinar/videoscribe/internal/models"
	"github.com/aura-webinar/videoscribe/pkg/response"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

// multipartSlack is the allowance for multipart headers on top of the file ceiling.
const multipartSlack = 1 << 20

// DegradedHeader is set on list responses served from the cache.
const DegradedHeader = "X-Videos-Degraded"

// Handler handles video HTTP endpoints.
type Handler struct {
	reconciler *Reconciler
	pipeline   *Pipeline
	meta       MetadataSource
	cache      cache.Cache
	logger     *zap.Logger

	// background transcriptions run on baseCtx, not the request context
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewHandler creates a videos handler. Transcriptions started by uploads are cancelled when
// baseCtx is done.
func NewHandler(baseCtx context.Context, reconciler *Reconciler, pipeline *Pipeline, meta MetadataSource, c cache.Cache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reconciler: reconciler,
		pipeline:   pipeline,
		meta:       meta,
		cache:      c,
		logger:     logger,
		baseCtx:    baseCtx,
	}
}

// RegisterRoutes mounts the video endpoints. requireAuth guards uploads.
func (h *Handler) RegisterRoutes(r gin.IRouter, requireAuth gin.HandlerFunc) {
	r.GET("/videos", h.List)
	r.GET("/videos/:id", h.Get)
	r.POST("/videos", requireAuth, h.Upload)
}

// Wait blocks until background transcriptions have returned.
func (h *Handler) Wait() { h.wg.Wait() }

// List handles GET /videos. It always succeeds; a storage outage yields cached records.
func (h *Handler) List(c *gin.Context) {
	res := h.reconciler.List(c.Request.Context())
	if res.Degraded {
		c.Header(DegradedHeader, "true")
	}
	response.List(c, res.Videos)
}

// Get handles GET /videos/:id. Lookup order: metadata document, cache, reconciled list.
// Stored URLs are re-signed before they are returned.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	rec, err := h.meta.Get(ctx, id)
	if err == nil {
		response.OK(c, h.reconciler.RefreshURL(ctx, *rec))
		return
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		h.logger.Warn("get metadata failed", zap.String("video_id", id), zap.Error(err))
	}
	if cached, ok := h.cache.Get(ctx, id); ok {
		response.OK(c, h.reconciler.RefreshURL(ctx, cached))
		return
	}
	for _, v := range h.reconciler.List(ctx).Videos {
		if v.ID == id {
			response.OK(c, v)
			return
		}
	}
	response.NotFound(c, "video not found")
}

// Upload handles POST /videos (multipart field "file"). It responds 202 once the video is
// stored and in processing; transcription continues in the background.
func (h *Handler) Upload(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == uuid.Nil {
		response.Unauthorized(c, "sign in to upload")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.pipeline.MaxBytes()+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, "file exceeds upload limit")
			return
		}
		response.BadRequest(c, "multipart field \"file\" is required")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := storage.ContentTypeByExtension(path.Ext(fh.Filename)); byExt != "" {
			contentType = byExt
		}
	}
	if err := h.pipeline.Validate(contentType, fh.Size); err != nil {
		h.rejectUpload(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("open upload failed", zap.Error(err))
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	rec, err := h.pipeline.Upload(c.Request.Context(), UploadInput{
		UserID:      userID,
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		if isValidationError(err) {
			h.rejectUpload(c, err)
			return
		}
		response.Internal(c, "upload failed: "+err.Error())
		return
	}

	h.wg.Add(1)
	go func(rec models.VideoRecord) {
		defer h.wg.Done()
		if _, err := h.pipeline.Transcribe(h.baseCtx, userID, rec); err != nil {
			h.logger.Warn("background transcription ended with error", zap.String("video_id", rec.ID), zap.Error(err))
		}
	}(*rec)

	response.Accepted(c, rec)
}

func isValidationError(err error) bool {
	return errors.Is(err, storage.ErrUnsupportedType) ||
		errors.Is(err, storage.ErrFileTooLarge) ||
		errors.Is(err, storage.ErrInvalidSize)
}

func (h *Handler) rejectUpload(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrFileTooLarge) {
		response.PayloadTooLarge(c, err.Error())
		return
	}
	response.BadRequest(c, err.Error())
}
