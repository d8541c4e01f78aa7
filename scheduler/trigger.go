package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	aws_pkg "settlement-service/pkg/aws"

	"go.uber.org/zap"
)

// TriggerMessage is the body a cloud scheduler posts to the job queue.
type TriggerMessage struct {
	Job string `json:"job"`
}

// TriggerHandler adapts the scheduler to an SQS consumer. A trigger that
// lands while the job is already running is acknowledged and dropped.
func (s *Scheduler) TriggerHandler() aws_pkg.MessageHandler {
	return func(ctx context.Context, body string) error {
		var msg TriggerMessage
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			return fmt.Errorf("decode trigger message: %w", err)
		}
		if msg.Job == "" {
			return errors.New("trigger message has no job")
		}

		err := s.RunOnce(ctx, msg.Job)
		if errors.Is(err, ErrJobRunning) {
			s.logger.Info("Trigger dropped, job already running", zap.String("job", msg.Job))
			return nil
		}
		return err
	}
}
