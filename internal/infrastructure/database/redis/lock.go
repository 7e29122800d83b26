package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

var ErrLockHeld = errors.New(errors.ErrCodeConflict, "run lock is held by another worker")

// RunLock serializes batch runs against the registry. The merge engine is
// single-writer; two workers resolving into the same registry would race on
// assignments, so a worker must hold the run lock for the duration of its
// batch. The lock carries an owner token so only the holder can release or
// extend it.
type RunLock struct {
	client *Client
	logger logging.Logger
	ttl    time.Duration
}

// NewRunLock wires a run lock with the given lease TTL. A zero ttl defaults
// to 10 minutes; long batches should extend the lease between buckets.
func NewRunLock(client *Client, ttl time.Duration, log logging.Logger) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl, logger: log}
}

func (l *RunLock) key(runID string) string {
	return l.client.KeyPrefix() + "runlock:" + runID
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript refreshes the lease only when the caller still owns it.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Lease is one held run lock.
type Lease struct {
	lock  *RunLock
	runID string
	token string
}

// Acquire takes the lock for a run, or returns ErrLockHeld when another
// worker holds it.
func (l *RunLock) Acquire(ctx context.Context, runID string) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.Raw().SetNX(ctx, l.key(runID), token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire run lock")
	}
	if !ok {
		return nil, ErrLockHeld
	}
	l.logger.Debug("run lock acquired", logging.String("run_id", runID))
	return &Lease{lock: l, runID: runID, token: token}, nil
}

// Extend refreshes the lease. Returns false when the lease was lost.
func (le *Lease) Extend(ctx context.Context) (bool, error) {
	n, err := extendScript.Run(ctx, le.lock.client.Raw(),
		[]string{le.lock.key(le.runID)}, le.token, le.lock.ttl.Milliseconds()).Int()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to extend run lock")
	}
	return n == 1, nil
}

// Release frees the lock. Releasing a lost lease is a no-op.
func (le *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, le.lock.client.Raw(),
		[]string{le.lock.key(le.runID)}, le.token).Int()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release run lock")
	}
	if n == 0 {
		le.lock.logger.Warn("run lock lease was already gone at release",
			logging.String("run_id", le.runID))
	}
	return nil
}
