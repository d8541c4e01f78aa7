package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"settlement-service/database"
	"settlement-service/events"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/scheduler"
	"settlement-service/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled jobs, the outbox relay and the SQS job trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.runWorker(ctx)
		},
	}
}

func runJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-job [name]",
		Short: "Run one job immediately and exit",
		Long: fmt.Sprintf("Run one job immediately and exit.\n\nJobs: %s, %s, %s, %s",
			services.JobRevenueRelease, services.JobBookingReminders, services.JobSubscriptionExpiry, events.JobOutboxRelay),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := a.newScheduler()
			if err != nil {
				return err
			}
			if err := s.RunOnce(ctx, args[0]); err != nil {
				return err
			}
			a.logger.Info("Job completed", zap.String("job", args[0]))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			a.logger.Info("Migrations applied")
			return nil
		},
	}
}

// runWorker runs the scheduler and, when JOB_QUEUE_URL is set, the SQS
// trigger consumer until ctx is cancelled.
func (a *app) runWorker(ctx context.Context) error {
	s, err := a.newScheduler()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Start(ctx)
	}()

	if a.cfg.JobQueueURL != "" && a.awsCfg != nil {
		consumer := aws_pkg.NewSQSConsumer(*a.awsCfg, a.cfg.JobQueueURL, a.logger)
		_ = consumer.StartPolling(ctx, triggerHandler(s, a))
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	return nil
}

// triggerHandler counts processed trigger messages on top of the scheduler's
// own handling.
func triggerHandler(s *scheduler.Scheduler, a *app) aws_pkg.MessageHandler {
	handle := s.TriggerHandler()
	return func(ctx context.Context, body string) error {
		err := handle(ctx, body)
		if err == nil && a.cw != nil {
			_ = a.cw.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"Queue": "jobs"})
		}
		return err
	}
}
