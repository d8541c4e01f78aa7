package events

import (
	"context"
	"fmt"
	"time"

	"settlement-service/metrics"
	"settlement-service/repository"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds how many outbox rows one relay pass claims.
const DefaultBatchSize = 100

// DefaultMaxAttempts is how many failed publishes a row gets before the relay
// stops claiming it. Parked rows stay in the table with their last error.
const DefaultMaxAttempts = 10

// JobOutboxRelay is the scheduler name of the relay.
const JobOutboxRelay = "outbox-relay"

// Relay drains unprocessed outbox rows. Rows are claimed with SKIP LOCKED so
// several relays can run side by side without publishing a row twice.
type Relay struct {
	store     repository.Store
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Collectors
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

func NewRelay(store repository.Store, publisher Publisher, logger *zap.Logger, m *metrics.Collectors) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

// RelayResult counts the rows handled by one pass.
type RelayResult struct {
	Published int
	Failed    int
	// Parked counts failures that reached the attempt limit on this pass.
	Parked int
}

// RunOnce claims one batch, publishes each row and records the outcome in the
// same transaction that holds the row locks.
func (r *Relay) RunOnce(ctx context.Context) (RelayResult, error) {
	var result RelayResult

	err := r.store.Transaction(ctx, func(tx repository.Store) error {
		result = RelayResult{}
		messages, err := tx.Outbox().ClaimBatch(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}

		for _, msg := range messages {
			if pubErr := r.publisher.Publish(ctx, msg); pubErr != nil {
				r.logger.Warn("Failed to publish outbox message",
					zap.String("message_id", msg.ID.String()),
					zap.String("event_type", msg.EventType),
					zap.Int("attempts", msg.Attempts+1),
					zap.Error(pubErr),
				)
				if err := tx.Outbox().MarkFailed(ctx, msg.ID, pubErr.Error()); err != nil {
					return fmt.Errorf("mark outbox message failed: %w", err)
				}
				result.Failed++
				if msg.Attempts+1 >= r.maxAttempts {
					r.logger.Error("Outbox message parked after too many failed publishes",
						zap.String("message_id", msg.ID.String()),
						zap.String("event_type", msg.EventType),
						zap.String("aggregate_id", msg.AggregateID.String()),
						zap.Int("attempts", msg.Attempts+1),
					)
					result.Parked++
				}
				continue
			}

			if err := tx.Outbox().MarkProcessed(ctx, msg.ID, r.now().UTC()); err != nil {
				return fmt.Errorf("mark outbox message processed: %w", err)
			}
			result.Published++
		}
		return nil
	})
	if err != nil {
		return RelayResult{}, err
	}

	r.metrics.ObserveOutbox(result.Published, result.Failed)
	if result.Published > 0 || result.Failed > 0 {
		r.logger.Info("Outbox relay pass complete",
			zap.Int("published", result.Published),
			zap.Int("failed", result.Failed),
			zap.Int("parked", result.Parked),
		)
	}
	return result, nil
}

// Name implements the scheduler job contract.
func (r *Relay) Name() string { return JobOutboxRelay }

// Run implements the scheduler job contract.
func (r *Relay) Run(ctx context.Context, _ time.Time) error {
	_, err := r.RunOnce(ctx)
	return err
}
