package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/videoscribe/internal/models"
)

const completedBody = `{
  "id": "tr_123",
  "status": "completed",
  "text": "Hi Bob. Hi Alice.",
  "words": [
    {"text": "Hi", "start": 0, "end": 200, "confidence": 0.98, "speaker": "A"},
    {"text": "Bob.", "start": 210, "end": 500, "confidence": 0.95, "speaker": "A"},
    {"text": "Hi", "start": 900, "end": 1100, "confidence": 0.97, "speaker": "B"},
    {"text": "Alice.", "start": 1110, "end": 1500, "confidence": 0.93, "speaker": "B"}
  ],
  "utterances": [
    {"speaker": "A", "text": "Hi Bob.", "start": 0, "end": 500, "confidence": 0.96,
     "words": [{"text": "Hi", "start": 0, "end": 200, "confidence": 0.98, "speaker": "A"},
               {"text": "Bob.", "start": 210, "end": 500, "confidence": 0.95, "speaker": "A"}]},
    {"speaker": "B", "text": "Hi Alice.", "start": 900, "end": 1500, "confidence": 0.95,
     "words": [{"text": "Hi", "start": 900, "end": 1100, "confidence": 0.97, "speaker": "B"},
               {"text": "Alice.", "start": 1110, "end": 1500, "confidence": 0.93, "speaker": "B"}]}
  ]
}`

func newServer(t *testing.T, polls int32, final string) (*httptest.Server, *int32, *submitRequest) {
	t.Helper()
	var calls int32
	var submitted submitRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_, _ = w.Write([]byte(`{"id":"tr_123","status":"queued"}`))
	})
	mux.HandleFunc("/v2/transcript/tr_123", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < polls {
			_, _ = w.Write([]byte(`{"id":"tr_123","status":"processing","text":null}`))
			return
		}
		_, _ = w.Write([]byte(final))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls, &submitted
}

func newClient(baseURL string) *AssemblyAI {
	return NewAssemblyAI(Config{
		APIKey:        "secret",
		BaseURL:       baseURL,
		Language:      "en",
		SpeakerLabels: true,
		PollInterval:  5 * time.Millisecond,
	}, nil, nil)
}

func TestTranscribe_PollsUntilCompleted(t *testing.T) {
	srv, calls, submitted := newServer(t, 3, completedBody)

	tr, err := newClient(srv.URL).Transcribe(context.Background(), "https://bucket.test/videos/1_a.mp4?token=1")
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.test/videos/1_a.mp4?token=1", submitted.AudioURL)
	assert.True(t, submitted.SpeakerLabels)
	assert.Equal(t, "en", submitted.LanguageCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	assert.Equal(t, "tr_123", tr.ID)
	assert.Equal(t, models.TranscriptStatusCompleted, tr.Status)
	assert.Equal(t, "Hi Bob. Hi Alice.", tr.Text)
	require.Len(t, tr.Words, 4)
	assert.Equal(t, "B", tr.Words[2].Speaker)
	require.Len(t, tr.Utterances, 2)
	assert.Equal(t, "A", tr.Utterances[0].Speaker)
	assert.Equal(t, int64(1500), tr.Utterances[1].End)
	assert.Len(t, tr.Utterances[1].Words, 2)
	assert.False(t, tr.CompletedAt.IsZero())
}

func TestTranscribe_RemoteError(t *testing.T) {
	srv, _, _ := newServer(t, 1, `{"id":"tr_123","status":"error","error":"media could not be downloaded"}`)

	tr, err := newClient(srv.URL).Transcribe(context.Background(), "https://bucket.test/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusError, tr.Status)
	assert.Equal(t, "media could not be downloaded", tr.Error)
	assert.Empty(t, tr.Text)
}

func TestTranscribe_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(srv.URL).Transcribe(context.Background(), "https://bucket.test/x.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	srv, _, _ := newServer(t, 1<<30, completedBody)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newClient(srv.URL).Transcribe(ctx, "https://bucket.test/x.mp4")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTranscribe_NotConfigured(t *testing.T) {
	c := NewAssemblyAI(Config{}, nil, nil)
	_, err := c.Transcribe(context.Background(), "https://bucket.test/x.mp4")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
