package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// IngestLock is a per-document advisory lock so concurrent re-ingestion of
// the same document cannot race. TTL bounds the hold time if a worker dies
// mid-ingest.
type IngestLock struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewIngestLock(client *redisv9.Client, ttl time.Duration) *IngestLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IngestLock{client: client, ttl: ttl}
}

// Acquire returns a release token if the lock was taken, or "" if another
// worker holds it.
func (l *IngestLock) Acquire(ctx context.Context, documentID uint) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(documentID), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire ingest lock failed: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release deletes the lock only if the token still owns it.
func (l *IngestLock) Release(ctx context.Context, documentID uint, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(documentID)}, token).Err(); err != nil {
		return fmt.Errorf("release ingest lock failed: %w", err)
	}
	return nil
}

func (l *IngestLock) key(documentID uint) string {
	return fmt.Sprintf("ingest:lock:%d", documentID)
}
