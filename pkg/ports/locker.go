package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on a session across interpreter replicas.
// The session manager takes it around every load-advance-save cycle.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after ttl even
	// if never released, so a crashed holder cannot wedge the session.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
