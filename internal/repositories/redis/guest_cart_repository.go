package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

const (
	guestCartKeyPrefix = "guestcart:"
	defaultGuestTTL    = 7 * 24 * time.Hour
)

// GuestCartRepository keeps pre-login cart lines in Redis keyed by an opaque
// session token. Entries expire on their own; a merge deletes them eagerly.
type GuestCartRepository struct {
	client *redis.Client
}

// NewGuestCartRepository connects to Redis using the given URL
// (redis://host:port/db) and verifies the connection.
func NewGuestCartRepository(ctx context.Context, redisURL string) (*GuestCartRepository, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("guest cart repository: invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("guest cart repository: connect redis: %w", err)
	}

	return &GuestCartRepository{client: client}, nil
}

// NewGuestCartRepositoryWithClient wraps an existing client; tests use miniredis here.
func NewGuestCartRepositoryWithClient(client *redis.Client) (*GuestCartRepository, error) {
	if client == nil {
		return nil, errors.New("guest cart repository requires redis client")
	}
	return &GuestCartRepository{client: client}, nil
}

// Get returns the stored guest lines, or an empty slice when the token is
// unknown or expired.
func (r *GuestCartRepository) Get(ctx context.Context, token string) ([]domain.GuestCartLine, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("guest cart repository not initialised")
	}
	key, err := guestCartKey(token)
	if err != nil {
		return nil, err
	}

	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.GuestCartLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("guest cart repository: get %s: %w", key, err)
	}

	var lines []domain.GuestCartLine
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, fmt.Errorf("guest cart repository: decode %s: %w", key, err)
	}
	return lines, nil
}

// Save stores the guest lines under the token with the given TTL.
func (r *GuestCartRepository) Save(ctx context.Context, token string, lines []domain.GuestCartLine, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return errors.New("guest cart repository not initialised")
	}
	key, err := guestCartKey(token)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultGuestTTL
	}

	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("guest cart repository: encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("guest cart repository: set %s: %w", key, err)
	}
	return nil
}

// Delete drops the guest cart; deleting an unknown token is not an error.
func (r *GuestCartRepository) Delete(ctx context.Context, token string) error {
	if r == nil || r.client == nil {
		return errors.New("guest cart repository not initialised")
	}
	key, err := guestCartKey(token)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("guest cart repository: delete %s: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection, used by readiness probes.
func (r *GuestCartRepository) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return errors.New("guest cart repository not initialised")
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (r *GuestCartRepository) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func guestCartKey(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errors.New("guest cart repository: token is required")
	}
	return guestCartKeyPrefix + trimmed, nil
}

var _ repositories.GuestCartRepository = (*GuestCartRepository)(nil)
