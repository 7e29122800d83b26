package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	appErrors "github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

// CheckpointStore persists batch-run cursors in Redis so an interrupted run
// can resume from its last fully-processed bucket. Cursors expire after TTL;
// a run that has been down longer than that restarts from the beginning,
// which is safe because resolution is idempotent over processed buckets.
type CheckpointStore struct {
	client *Client
	ttl    time.Duration
	logger logging.Logger
}

var _ appres.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore wires a checkpoint store on the shared client. A zero
// ttl falls back to the client's default TTL.
func NewCheckpointStore(client *Client, ttl time.Duration, log logging.Logger) *CheckpointStore {
	if ttl <= 0 {
		ttl = client.DefaultTTL()
	}
	return &CheckpointStore{client: client, ttl: ttl, logger: log}
}

func (s *CheckpointStore) key(runID string) string {
	return s.client.KeyPrefix() + "checkpoint:" + runID
}

// Load returns the saved cursor for a run, or "" when none exists.
func (s *CheckpointStore) Load(ctx context.Context, runID string) (string, error) {
	cursor, err := s.client.Raw().Get(ctx, s.key(runID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrCodeCheckpointError, "failed to load checkpoint")
	}
	return cursor, nil
}

// Save stores the cursor, refreshing the expiry.
func (s *CheckpointStore) Save(ctx context.Context, runID, bucketKey string) error {
	if err := s.client.Raw().Set(ctx, s.key(runID), bucketKey, s.ttl).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeCheckpointError, "failed to save checkpoint")
	}
	s.logger.Debug("checkpoint saved",
		logging.String("run_id", runID),
		logging.String("cursor", bucketKey),
	)
	return nil
}

// Clear removes the cursor after a run completes.
func (s *CheckpointStore) Clear(ctx context.Context, runID string) error {
	if err := s.client.Raw().Del(ctx, s.key(runID)).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeCheckpointError, "failed to clear checkpoint")
	}
	return nil
}
