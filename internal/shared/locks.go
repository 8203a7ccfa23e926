package shared

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OrderNumberingLockKey is the fixed redis key serializing order-number allocation.
const OrderNumberingLockKey = "orders:numbering:lock"

// PartitionLockKey derives the advisory lock key for a ledger partition.
// The key feeds pg_advisory_xact_lock so that "read last balance, compute,
// insert" is exclusive per (ledger, tenant, actor) without blocking other
// partitions.
func PartitionLockKey(ledger string, tenantID, actorID int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%d", ledger, tenantID, actorID)
	return int64(h.Sum64())
}

// Mutex is a redis-backed lock for critical sections that span multiple
// statements outside a single database transaction.
type Mutex struct {
	client   *redis.Client
	key      string
	ttl      time.Duration
	waitFor  time.Duration
	pollStep time.Duration
}

// NewMutex constructs a Mutex with a bounded acquisition wait.
func NewMutex(client *redis.Client, key string, ttl, waitFor time.Duration) *Mutex {
	return &Mutex{
		client:   client,
		key:      key,
		ttl:      ttl,
		waitFor:  waitFor,
		pollStep: 25 * time.Millisecond,
	}
}

// Acquire takes the lock or returns ErrContended after the bounded wait.
// The returned token must be passed to Release.
func (m *Mutex) Acquire(ctx context.Context) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(m.waitFor)
	for {
		ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("shared: acquire %s: %w", m.key, err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("shared: acquire %s: %w", m.key, ErrContended)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.pollStep):
		}
	}
}

// Release frees the lock if it is still held by token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Release drops the lock. Releasing a lock lost to TTL expiry is a no-op.
func (m *Mutex) Release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, m.client, []string{m.key}, token).Err()
}
