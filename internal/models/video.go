package models

import (
	"strconv"
	"strings"
	"time"
)

// VideoStatus represents the video lifecycle.
type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "uploading"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusError      VideoStatus = "error"
)

// TranscriptStatus mirrors the transcription service job status.
type TranscriptStatus string

const (
	TranscriptStatusQueued     TranscriptStatus = "queued"
	TranscriptStatusProcessing TranscriptStatus = "processing"
	TranscriptStatusCompleted  TranscriptStatus = "completed"
	TranscriptStatusError      TranscriptStatus = "error"
)

// VideoRecord is one uploaded video plus its optional transcript.
// It is also the shape of the metadata/{id}.json document.
type VideoRecord struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	URL        string      `json:"url"`
	Size       int64       `json:"size"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Status     VideoStatus `json:"status"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// HasTranscriptText reports whether the record carries non-empty transcript text.
func (v *VideoRecord) HasTranscriptText() bool {
	return v.Transcript != nil && v.Transcript.Text != ""
}

// Transcript is the transcription service result for a video.
type Transcript struct {
	ID          string           `json:"id"`
	Text        string           `json:"text"`
	Status      TranscriptStatus `json:"status"`
	Words       []Word           `json:"words"`
	Utterances  []Utterance      `json:"utterances"`
	CompletedAt time.Time        `json:"completed_at"`
	Error       string           `json:"error,omitempty"`
}

// Word is a single recognized word. Offsets are milliseconds.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance is a contiguous run of words by one speaker.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// CanTransition reports whether a video may move from s to next.
// completed and error are terminal.
func (s VideoStatus) CanTransition(next VideoStatus) bool {
	switch s {
	case VideoStatusUploading:
		return next == VideoStatusProcessing || next == VideoStatusError
	case VideoStatusProcessing:
		return next == VideoStatusCompleted || next == VideoStatusError
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusError
}

// NewVideoID returns the identifier for a video uploaded at t: Unix milliseconds in decimal.
func NewVideoID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// CanonicalURL strips the query string (access token) and fragment from a download URL.
func CanonicalURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// ParseBlobName splits a stored filename of the form {id}_{originalName}.
// Without an underscore the id falls back to now, the display name is the whole filename
// and stable is false: the id changes on every call.
func ParseBlobName(filename string, now time.Time) (id, name string, stable bool) {
	if i := strings.Index(filename, "_"); i > 0 {
		return filename[:i], filename[i+1:], true
	}
	return NewVideoID(now), filename, false
}
