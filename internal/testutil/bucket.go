// Package testutil provides in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aura-webinar/videoscribe/pkg/storage"
)

// ErrInjected is the default error returned by failing fake operations.
var ErrInjected = errors.New("injected storage failure")

// Bucket is an in-memory object store with the same method set as storage.S3.
// Download URLs look like presigned ones: https://bucket.test/{key}?token={n}. Like the
// windowed S3 presigner, n only changes when RotateSigning is called.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]bucketObject
	token   int

	// ListErr, when set, is returned by ListObjects for keys under the given prefix ("" = all).
	ListErr       map[string]error
	PutErr        error
	UploadErr     error
	DownloadURLFn func(key string) string

	Puts    []string
	Uploads []string
	Gets    []string
}

type bucketObject struct {
	data        []byte
	contentType string
	size        int64
	modified    time.Time
}

// NewBucket creates an empty Bucket.
func NewBucket() *Bucket {
	return &Bucket{objects: make(map[string]bucketObject), ListErr: make(map[string]error)}
}

// AddObject seeds an object with a fixed size and modification time.
func (b *Bucket) AddObject(key string, data []byte, size int64, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = bucketObject{data: data, size: size, modified: modified}
}

// Has reports whether key exists.
func (b *Bucket) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// Writes returns the number of PutObject plus Upload calls that reached the store.
func (b *Bucket) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Puts) + len(b.Uploads)
}

// PutObject implements the metadata write path.
func (b *Bucket) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PutErr != nil {
		return b.PutErr
	}
	cp := append([]byte(nil), data...)
	b.objects[key] = bucketObject{data: cp, contentType: contentType, size: int64(len(cp)), modified: time.Now()}
	b.Puts = append(b.Puts, key)
	return nil
}

// GetObject returns storage.ErrNotFound for missing keys.
func (b *Bucket) GetObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Gets = append(b.Gets, key)
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// ListObjects lists keys under prefix in key order.
func (b *Bucket) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.ListErr[prefix]; ok && err != nil {
		return nil, err
	}
	if err, ok := b.ListErr[""]; ok && err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var out []storage.ObjectInfo
	for k, obj := range b.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: obj.size, LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Upload consumes body and stores it, reporting progress like storage.S3.
func (b *Bucket) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, onProgress storage.ProgressFunc) error {
	if b.UploadErr != nil {
		return b.UploadErr
	}
	if onProgress != nil {
		body = storage.NewProgressReader(body, contentLength, onProgress)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = bucketObject{data: data, contentType: contentType, size: int64(len(data)), modified: time.Now()}
	b.Uploads = append(b.Uploads, key)
	return nil
}

// DownloadURL returns a fresh tokenised URL on every call, like a presigner would.
func (b *Bucket) DownloadURL(ctx context.Context, key string) (string, error) {
	if b.DownloadURLFn != nil {
		return b.DownloadURLFn(key), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return URLFor(key) + "?token=" + strconv.Itoa(b.token+1), nil
}

// RotateSigning moves to the next signing window: later download URLs carry a new token.
func (b *Bucket) RotateSigning() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token++
}

// URLFor is the canonical (token-free) URL the fake bucket hands out for key.
func URLFor(key string) string {
	return "https://bucket.test/" + key
}
