package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVideoStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to VideoStatus
		want     bool
	}{
		{VideoStatusUploading, VideoStatusProcessing, true},
		{VideoStatusUploading, VideoStatusError, true},
		{VideoStatusUploading, VideoStatusCompleted, false},
		{VideoStatusProcessing, VideoStatusCompleted, true},
		{VideoStatusProcessing, VideoStatusError, true},
		{VideoStatusProcessing, VideoStatusUploading, false},
		{VideoStatusCompleted, VideoStatusError, false},
		{VideoStatusCompleted, VideoStatusProcessing, false},
		{VideoStatusError, VideoStatusProcessing, false},
		{VideoStatusError, VideoStatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.amazonaws.com/videos/1_a.mp4",
		CanonicalURL("https://b.s3.amazonaws.com/videos/1_a.mp4?X-Amz-Signature=abc&X-Amz-Expires=60"))
	assert.Equal(t, "https://host/videos/1_a.mp4", CanonicalURL("https://host/videos/1_a.mp4#t=10"))
	assert.Equal(t, "https://host/plain", CanonicalURL("https://host/plain"))
}

func TestParseBlobName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	id, name, stable := ParseBlobName("1699999999999_my_talk.mp4", now)
	assert.Equal(t, "1699999999999", id)
	assert.Equal(t, "my_talk.mp4", name)
	assert.True(t, stable)

	id, name, stable = ParseBlobName("orphan.mp4", now)
	assert.Equal(t, "1700000000123", id)
	assert.Equal(t, "orphan.mp4", name)
	assert.False(t, stable)

	id, name, stable = ParseBlobName("_leading.mp4", now)
	assert.Equal(t, "1700000000123", id)
	assert.Equal(t, "_leading.mp4", name)
	assert.False(t, stable)
}

func TestVideoRecord_HasTranscriptText(t *testing.T) {
	v := VideoRecord{}
	assert.False(t, v.HasTranscriptText())
	v.Transcript = &Transcript{}
	assert.False(t, v.HasTranscriptText())
	v.Transcript.Text = "hello"
	assert.True(t, v.HasTranscriptText())
}
