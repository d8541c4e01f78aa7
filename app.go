package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-service/cache"
	"settlement-service/database"
	"settlement-service/events"
	"settlement-service/metrics"
	"settlement-service/notifier"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/repository"
	"settlement-service/scheduler"
	"settlement-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const metricsNamespace = "SehatMakaan/Settlement"

// app is the wired dependency graph shared by every command.
type app struct {
	cfg     *Config
	logger  *zap.Logger
	db      *gorm.DB
	store   repository.Store
	metrics *metrics.Collectors
	cw      *aws_pkg.MetricsClient
	awsCfg  *sdkaws.Config

	settlement services.SettlementService
	revenue    services.RevenueService
	checkout   services.CheckoutService
	reminders  services.ReminderService
	emailQueue services.EmailQueueService
	relay      *events.Relay

	closers []func() error
}

// loadAWS returns a nil config when no usable AWS config is available;
// AWS-backed features are then disabled.
func loadAWS(ctx context.Context, cfg *Config) (*sdkaws.Config, error) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx, cfg.AWSOptions())
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

func newApp(ctx context.Context, cfg *Config, log *zap.Logger, awsCfg *sdkaws.Config) (*app, error) {
	db, err := database.ConnectPostgres(cfg.PostgresDSN(), database.DefaultPool, log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  log,
		db:      db,
		store:   repository.NewGormStore(db),
		metrics: metrics.New(),
		awsCfg:  awsCfg,
	}
	a.closers = append(a.closers, func() error { return database.Close(db) })

	var push aws_pkg.PushPublisher
	if awsCfg != nil {
		a.cw = aws_pkg.NewMetricsClient(*awsCfg, metricsNamespace, cfg.CloudWatchEnabled)
		push = aws_pkg.NewSNSClient(*awsCfg)
	}

	var callbacks cache.ProcessedCallbacks = cache.NoopCallbacks{}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable, duplicate callbacks are detected by the database only", zap.Error(err))
		} else {
			callbacks = cache.NewRedisCallbacks(client, cache.DefaultSettledTTL)
			a.closers = append(a.closers, client.Close)
		}
	}

	users := repository.NewGormUserRepository(db)
	notifications := repository.NewGormNotificationRepository(db)
	dispatcher := notifier.New(users, notifications, push, log, a.metrics)

	a.settlement = services.NewSettlementService(a.store, callbacks, dispatcher, services.SettlementConfig{
		Passphrase:      cfg.PayFastPassphrase,
		AmountTolerance: cfg.AmountTolerance,
	}, log, a.metrics, a.cw)
	a.revenue = services.NewRevenueService(a.store, dispatcher, services.RevenueConfig{
		ReleaseDelay: cfg.ReleaseDelay,
		BatchSize:    services.DefaultReleaseBatchSize,
	}, log, a.metrics, a.cw)
	a.checkout = services.NewCheckoutService(a.store, cfg.Merchant(), cfg.CreationFee, log)
	a.reminders = services.NewReminderService(
		repository.NewGormBookingRepository(db),
		repository.NewGormSubscriptionRepository(db),
		notifications,
		dispatcher,
		loc,
		log,
	)
	a.emailQueue = services.NewEmailQueueService(users, dispatcher, log)
	a.relay = events.NewRelay(a.store, a.eventPublisher(), log, a.metrics)

	return a, nil
}

// eventPublisher picks Kafka, then SNS, then a logging fallback.
func (a *app) eventPublisher() events.Publisher {
	switch {
	case len(a.cfg.KafkaBrokers) > 0:
		p := events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		a.closers = append(a.closers, p.Close)
		return p
	case a.cfg.EventsSNSTopicARN != "" && a.awsCfg != nil:
		a.logger.Info("SNS event publisher initialized", zap.String("topic_arn", a.cfg.EventsSNSTopicARN))
		return events.NewSNSPublisher(aws_pkg.NewSNSClient(*a.awsCfg), a.cfg.EventsSNSTopicARN)
	default:
		a.logger.Warn("No event bus configured, outbox events are only logged")
		return events.NewLogPublisher(a.logger)
	}
}

// newScheduler registers every job with its production schedule.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}

	s := scheduler.New(scheduler.Config{Timeout: a.cfg.JobTimeout}, a.logger, a.metrics, a.cw)
	s.Register(services.RevenueReleaseJob{Service: a.revenue}, scheduler.Every(time.Hour))
	s.Register(services.BookingReminderJob{Service: a.reminders}, scheduler.DailyAt(9, 0, loc))
	s.Register(services.SubscriptionExpiryJob{Service: a.reminders}, scheduler.DailyAt(9, 0, loc))
	s.Register(a.relay, scheduler.Every(5*time.Second))
	return s, nil
}

func (a *app) ready(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
