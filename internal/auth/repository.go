package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aura-webinar/videoscribe/internal/models"
)

var (
	// ErrUserNotFound is returned when no user has the given email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// Repository handles user persistence.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newUser(email, passwordHash string) *models.User {
	return &models.User{
		ID:        uuid.New(),
		Email:     normalizeEmail(email),
		Password:  passwordHash,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryRepository keeps users in process memory. Users are lost on restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]models.User)}
}

// GetByEmail returns a user by email.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Create inserts a new user.
func (r *MemoryRepository) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	u := newUser(email, passwordHash)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, ErrEmailTaken
	}
	r.byEmail[u.Email] = *u
	return u, nil
}

const userKeyPrefix = "videoscribe:user:"

// RedisRepository stores one JSON document per user under videoscribe:user:{email}.
type RedisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository creates a Redis-backed repository.
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// GetByEmail returns a user by email.
func (r *RedisRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	b, err := r.rdb.Get(ctx, userKeyPrefix+normalizeEmail(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user with SETNX; an existing key yields ErrEmailTaken.
func (r *RedisRepository) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	u := newUser(email, passwordHash)
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, userKeyPrefix+u.Email, b, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if !ok {
		return nil, ErrEmailTaken
	}
	return u, nil
}
