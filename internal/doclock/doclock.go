// Package doclock serializes writers per document using Redis SET NX.
// Two generation workers touching the same client document race on section
// rows and version numbers; the lock makes the second caller fail fast
// instead of interleaving.
package doclock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the document lock.
var ErrLocked = errors.New("document is locked by another operation")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires short-lived exclusive locks keyed by document identity.
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Redis-backed locker. The TTL bounds how long a crashed
// holder can block other writers.
func NewLocker(client *redis.Client, prefix string, ttl time.Duration) (*Locker, error) {
	if client == nil {
		return nil, errors.New("doclock requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "creatorlab:doclock"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl}, nil
}

// Acquire takes the lock for the given document key. The returned release
// func is safe to call even after the TTL expired; it only deletes the lock
// when this caller still owns it.
func (l *Locker) Acquire(ctx context.Context, clientID string, docType string, month int, owner string) (func(), error) {
	key := l.key(clientID, docType, month)
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire document lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, owner).Result()
	}
	return release, nil
}

func (l *Locker) key(clientID, docType string, month int) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, clientID, docType, month)
}
