package videos

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metadata"
	"github.com/aura-webinar/videoscribe/internal/metrics"
	"github.com/aura-webinar/videoscribe/internal/models"
	fakes "github.com/aura-webinar/videoscribe/internal/testutil"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type reconcilerFixture struct {
	bucket  *fakes.Bucket
	cache   *cache.Memory
	metrics *metrics.Metrics
	rec     *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	b := fakes.NewBucket()
	c := cache.NewMemory(0, 0)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := NewReconciler(b, metadata.NewStore(b, nil), c, m, nil)
	r.now = func() time.Time { return t0 }
	return &reconcilerFixture{bucket: b, cache: c, metrics: m, rec: r}
}

func (f *reconcilerFixture) addVideo(key string, size int64, modified time.Time) {
	f.bucket.AddObject(key, nil, size, modified)
}

func (f *reconcilerFixture) addMetadata(t *testing.T, rec models.VideoRecord) {
	t.Helper()
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	f.bucket.AddObject(storage.MetadataKey(rec.ID), body, int64(len(body)), t0)
}

func tierCount(m *metrics.Metrics, tier string) float64 {
	return testutil.ToFloat64(m.ReconcileResolutions.WithLabelValues(tier))
}

func TestReconcile_MatchesMetadataByCanonicalURL(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/100_talk.mp4", 2048, t0)
	f.addMetadata(t, models.VideoRecord{
		ID:         "legacy-7",
		Name:       "talk.mp4",
		URL:        fakes.URLFor("videos/100_talk.mp4") + "?token=old",
		Size:       1,
		UploadedAt: t0.Add(-time.Hour),
		Status:     models.VideoStatusCompleted,
		Transcript: &models.Transcript{ID: "tr", Text: "hello", Status: models.TranscriptStatusCompleted},
	})

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)

	got := videos[0]
	assert.Equal(t, "100", got.ID)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "hello", got.Transcript.Text)
	assert.Equal(t, fakes.URLFor("videos/100_talk.mp4"), models.CanonicalURL(got.URL))
	assert.NotEqual(t, fakes.URLFor("videos/100_talk.mp4")+"?token=old", got.URL)
	assert.Equal(t, float64(1), tierCount(f.metrics, metrics.TierURL))
}

func TestReconcile_MatchesMetadataByID(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/200_demo.webm", 512, t0)
	f.addMetadata(t, models.VideoRecord{
		ID:         "200",
		Name:       "demo.webm",
		URL:        "https://elsewhere.test/moved.webm",
		UploadedAt: t0.Add(-time.Minute),
		Status:     models.VideoStatusProcessing,
	})

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "200", videos[0].ID)
	assert.Equal(t, models.VideoStatusProcessing, videos[0].Status)
	assert.Equal(t, int64(512), videos[0].Size)
	assert.Equal(t, fakes.URLFor("videos/200_demo.webm"), models.CanonicalURL(videos[0].URL))
	assert.Equal(t, float64(1), tierCount(f.metrics, metrics.TierID))
}

func TestReconcile_FallsBackToCache(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/300_clip.mov", 99, t0)
	f.cache.Put(context.Background(), models.VideoRecord{
		ID:         "300",
		Name:       "clip.mov",
		URL:        "https://bucket.test/stale",
		Size:       99,
		UploadedAt: t0.Add(-time.Hour),
		Status:     models.VideoStatusProcessing,
	})

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, models.VideoStatusProcessing, videos[0].Status)
	assert.Equal(t, t0.Add(-time.Hour), videos[0].UploadedAt)
	assert.Equal(t, fakes.URLFor("videos/300_clip.mov"), models.CanonicalURL(videos[0].URL))
	assert.Equal(t, float64(1), tierCount(f.metrics, metrics.TierCache))
}

func TestReconcile_SynthesizesFromBlob(t *testing.T) {
	f := newReconcilerFixture(t)
	modified := t0.Add(-2 * time.Hour)
	f.addVideo("videos/400_my_lecture.mp4", 4096, modified)
	f.addVideo("videos/nounderscore.mp4", 10, modified)

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)

	byID := map[string]models.VideoRecord{}
	for _, v := range videos {
		byID[v.ID] = v
	}
	got, ok := byID["400"]
	require.True(t, ok)
	assert.Equal(t, "my_lecture.mp4", got.Name)
	assert.Equal(t, int64(4096), got.Size)
	assert.Equal(t, modified, got.UploadedAt)
	assert.Equal(t, models.VideoStatusCompleted, got.Status)
	assert.Nil(t, got.Transcript)

	fallback, ok := byID[models.NewVideoID(t0)]
	require.True(t, ok)
	assert.Equal(t, "nounderscore.mp4", fallback.Name)
	assert.Equal(t, float64(2), tierCount(f.metrics, metrics.TierSynthesized))
}

func TestReconcile_URLMatchBeatsCachedID(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/500_a.mp4", 1, t0)
	f.addMetadata(t, models.VideoRecord{
		ID:     "other",
		Name:   "from-metadata.mp4",
		URL:    fakes.URLFor("videos/500_a.mp4"),
		Status: models.VideoStatusCompleted,
	})
	f.cache.Put(context.Background(), models.VideoRecord{ID: "500", Name: "from-cache.mp4", Status: models.VideoStatusError})

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "500", videos[0].ID)
	assert.Equal(t, "from-metadata.mp4", videos[0].Name)
	assert.Equal(t, models.VideoStatusCompleted, videos[0].Status)
}

func TestReconcile_DuplicateIDKeepsTranscript(t *testing.T) {
	for _, tc := range []struct {
		name       string
		withScript string
	}{
		{"transcript first", "videos/600_a.mp4"},
		{"transcript second", "videos/600_b.mp4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newReconcilerFixture(t)
			f.addVideo("videos/600_a.mp4", 1, t0)
			f.addVideo("videos/600_b.mp4", 2, t0)
			f.addMetadata(t, models.VideoRecord{
				ID:         "meta-600",
				Name:       "with-transcript.mp4",
				URL:        fakes.URLFor(tc.withScript),
				Status:     models.VideoStatusCompleted,
				Transcript: &models.Transcript{Text: "spoken words", Status: models.TranscriptStatusCompleted},
			})

			videos, err := f.rec.Reconcile(context.Background())
			require.NoError(t, err)
			require.Len(t, videos, 1)
			assert.Equal(t, "600", videos[0].ID)
			require.True(t, videos[0].HasTranscriptText())
			assert.Equal(t, "spoken words", videos[0].Transcript.Text)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReconcileCollisions))
		})
	}
}

func TestReconcile_SortsNewestFirst(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/1_old.mp4", 1, t0.Add(-time.Hour))
	f.addVideo("videos/2_new.mp4", 1, t0)
	f.addVideo("videos/3_tie.mp4", 1, t0)

	videos, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "3", videos[0].ID)
	assert.Equal(t, "2", videos[1].ID)
	assert.Equal(t, "1", videos[2].ID)
}

func TestReconcile_IdempotentOverUnchangedStorage(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/10_a.mp4", 1, t0.Add(-time.Minute))
	f.addVideo("videos/11_b.mp4", 1, t0)
	f.addVideo("videos/12_c.mp4", 1, t0.Add(-time.Hour))
	f.addMetadata(t, models.VideoRecord{
		ID:         "11",
		Name:       "b.mp4",
		URL:        fakes.URLFor("videos/11_b.mp4"),
		UploadedAt: t0,
		Status:     models.VideoStatusCompleted,
		Transcript: &models.Transcript{Text: "b", Status: models.TranscriptStatusCompleted},
	})

	first, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	second, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// a new signing window changes URLs only
	f.bucket.RotateSigning()
	third, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, third, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, third[i].ID)
		assert.NotEqual(t, first[i].URL, third[i].URL)
		assert.Equal(t, models.CanonicalURL(first[i].URL), models.CanonicalURL(third[i].URL))
	}
}

func TestReconcile_MirrorsResultsIntoCache(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/20_x.mp4", 1, t0)

	_, err := f.rec.Reconcile(context.Background())
	require.NoError(t, err)

	got, ok := f.cache.Get(context.Background(), "20")
	require.True(t, ok)
	assert.Equal(t, "x.mp4", got.Name)
}

func TestList_DegradesToCacheOnMetadataFailure(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/30_a.mp4", 1, t0)
	f.cache.Put(context.Background(), models.VideoRecord{ID: "29", UploadedAt: t0.Add(-time.Hour)})
	f.cache.Put(context.Background(), models.VideoRecord{ID: "31", UploadedAt: t0})
	f.bucket.ListErr[storage.FolderMetadata] = fakes.ErrInjected

	res := f.rec.List(context.Background())
	assert.True(t, res.Degraded)
	require.Len(t, res.Videos, 2)
	assert.Equal(t, "31", res.Videos[0].ID)
	assert.Equal(t, "29", res.Videos[1].ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReconcileFallbacks))
}

func TestList_DegradedListHasOneRecordPerBlob(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/nounderscore.mp4", 10, t0)
	f.addVideo("videos/50_kept.mp4", 10, t0)

	for i := 0; i < 3; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		f.rec.now = func() time.Time { return now }
		videos, err := f.rec.Reconcile(context.Background())
		require.NoError(t, err)
		require.Len(t, videos, 2)
	}
	assert.Equal(t, 1, f.cache.Len())

	f.bucket.ListErr[storage.FolderMetadata] = fakes.ErrInjected
	res := f.rec.List(context.Background())
	assert.True(t, res.Degraded)
	require.Len(t, res.Videos, 1)
	assert.Equal(t, "50", res.Videos[0].ID)
}

func TestRefreshURL(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bucket.DownloadURLFn = func(k string) string { return fakes.URLFor(k) + "?token=new" }

	got := f.rec.RefreshURL(context.Background(), models.VideoRecord{ID: "1", URL: fakes.URLFor("videos/1_a.mp4") + "?token=old"})
	assert.Equal(t, fakes.URLFor("videos/1_a.mp4")+"?token=new", got.URL)

	got = f.rec.RefreshURL(context.Background(), models.VideoRecord{ID: "2", URL: "https://elsewhere.test/a.mp4"})
	assert.Equal(t, "https://elsewhere.test/a.mp4", got.URL)

	got = f.rec.RefreshURL(context.Background(), models.VideoRecord{ID: "3"})
	assert.Empty(t, got.URL)
}

func TestList_EmptyCacheOnVideoListFailure(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bucket.ListErr[storage.FolderVideos] = fakes.ErrInjected

	res := f.rec.List(context.Background())
	assert.True(t, res.Degraded)
	assert.NotNil(t, res.Videos)
	assert.Empty(t, res.Videos)
}

func TestList_HealthyStorage(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addVideo("videos/40_a.mp4", 1, t0)

	res := f.rec.List(context.Background())
	assert.False(t, res.Degraded)
	assert.Len(t, res.Videos, 1)
}
