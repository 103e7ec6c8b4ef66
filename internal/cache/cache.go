// Package cache holds the ephemeral, non-authoritative copy of VideoRecords used as a
// fallback when storage listing fails and as a fast path for mid-session status updates.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aura-webinar/videoscribe/internal/models"
)

// Cache is a keyed table of VideoRecords. Implementations never fail loudly: a backend
// error is a miss.
type Cache interface {
	Get(ctx context.Context, id string) (models.VideoRecord, bool)
	Put(ctx context.Context, rec models.VideoRecord)
	List(ctx context.Context) []models.VideoRecord
}

// Memory is a process-local Cache bounded by entry count (LRU) and TTL.
type Memory struct {
	lru *lru.LRU[string, models.VideoRecord]
}

// NewMemory creates a memory cache. maxEntries <= 0 means unbounded, ttl <= 0 means no expiry.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Memory{lru: lru.NewLRU[string, models.VideoRecord](maxEntries, nil, ttl)}
}

// Get returns a copy of the cached record.
func (m *Memory) Get(_ context.Context, id string) (models.VideoRecord, bool) {
	return m.lru.Get(id)
}

// Put stores rec under rec.ID, replacing any previous entry.
func (m *Memory) Put(_ context.Context, rec models.VideoRecord) {
	if rec.ID == "" {
		return
	}
	m.lru.Add(rec.ID, rec)
}

// List returns all live entries, oldest first.
func (m *Memory) List(_ context.Context) []models.VideoRecord {
	return m.lru.Values()
}

// Len returns the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }
