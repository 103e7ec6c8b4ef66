// Package transcription submits media URLs to a hosted speech-to-text service and waits for
// the result.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/models"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("transcription service not configured")

// Config holds client settings.
type Config struct {
	APIKey        string
	BaseURL       string
	Language      string
	SpeakerLabels bool
	PollInterval  time.Duration
}

// AssemblyAI talks to the AssemblyAI v2 transcript API (or anything speaking the same protocol).
type AssemblyAI struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewAssemblyAI creates a client. httpClient may be nil.
func NewAssemblyAI(cfg Config, httpClient *http.Client, logger *zap.Logger) *AssemblyAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.assemblyai.com"
	}
	return &AssemblyAI{cfg: cfg, http: httpClient, logger: logger}
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	LanguageCode  string `json:"language_code,omitempty"`
}

type apiWord struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    *string `json:"speaker"`
}

type apiUtterance struct {
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	Start      int64     `json:"start"`
	End        int64     `json:"end"`
	Confidence float64   `json:"confidence"`
	Words      []apiWord `json:"words"`
}

type apiTranscript struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Text       *string        `json:"text"`
	Words      []apiWord      `json:"words"`
	Utterances []apiUtterance `json:"utterances"`
	Error      string         `json:"error"`
}

// Transcribe submits mediaURL and blocks until the remote job completes or fails. A job that
// fails remotely yields a Transcript with status error and a nil error; transport and HTTP
// failures are returned as errors. Only ctx bounds the wait.
func (a *AssemblyAI) Transcribe(ctx context.Context, mediaURL string) (*models.Transcript, error) {
	if a.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	job, err := a.submit(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	a.logger.Info("transcription submitted", zap.String("transcript_id", job.ID))

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for !isTerminal(job.Status) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait transcript %s: %w", job.ID, ctx.Err())
		case <-ticker.C:
		}
		job, err = a.get(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("transcription polled", zap.String("transcript_id", job.ID), zap.String("status", job.Status))
	}
	return toModel(job, time.Now().UTC()), nil
}

func (a *AssemblyAI) submit(ctx context.Context, mediaURL string) (*apiTranscript, error) {
	body, err := json.Marshal(submitRequest{
		AudioURL:      mediaURL,
		SpeakerLabels: a.cfg.SpeakerLabels,
		LanguageCode:  a.cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *AssemblyAI) get(ctx context.Context, id string) (*apiTranscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return a.do(req)
}

func (a *AssemblyAI) do(req *http.Request) (*apiTranscript, error) {
	req.Header.Set("Authorization", a.cfg.APIKey)
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription http %d: %s", resp.StatusCode, string(b))
	}
	var out apiTranscript
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if out.ID == "" {
		return nil, errors.New("transcription response missing id")
	}
	return &out, nil
}

func isTerminal(status string) bool {
	return status == string(models.TranscriptStatusCompleted) || status == string(models.TranscriptStatusError)
}

func toModel(t *apiTranscript, completedAt time.Time) *models.Transcript {
	out := &models.Transcript{
		ID:          t.ID,
		Status:      models.TranscriptStatus(t.Status),
		Words:       convertWords(t.Words),
		Utterances:  make([]models.Utterance, 0, len(t.Utterances)),
		CompletedAt: completedAt,
		Error:       t.Error,
	}
	if t.Text != nil {
		out.Text = *t.Text
	}
	for _, u := range t.Utterances {
		out.Utterances = append(out.Utterances, models.Utterance{
			Speaker:    u.Speaker,
			Text:       u.Text,
			Start:      u.Start,
			End:        u.End,
			Confidence: u.Confidence,
			Words:      convertWords(u.Words),
		})
	}
	return out
}

func convertWords(in []apiWord) []models.Word {
	out := make([]models.Word, 0, len(in))
	for _, w := range in {
		word := models.Word{Text: w.Text, Start: w.Start, End: w.End, Confidence: w.Confidence}
		if w.Speaker != nil {
			word.Speaker = *w.Speaker
		}
		out = append(out, word)
	}
	return out
}
