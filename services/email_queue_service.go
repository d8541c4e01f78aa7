package services

import (
	"context"
	"errors"

	"settlement-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EmailRequeuer puts failed emails back in the delivery queue.
type EmailRequeuer interface {
	RequeueFailedEmails(ctx context.Context) (int64, error)
}

// EmailQueueService exposes admin maintenance of the email queue.
type EmailQueueService interface {
	RetryFailed(ctx context.Context, callerID uuid.UUID) (int64, *ServiceError)
}

type emailQueueServiceImpl struct {
	users    repository.UserRepository
	requeuer EmailRequeuer
	logger   *zap.Logger
}

func NewEmailQueueService(users repository.UserRepository, requeuer EmailRequeuer, logger *zap.Logger) EmailQueueService {
	return &emailQueueServiceImpl{users: users, requeuer: requeuer, logger: logger}
}

func (s *emailQueueServiceImpl) RetryFailed(ctx context.Context, callerID uuid.UUID) (int64, *ServiceError) {
	caller, err := s.users.FindByID(ctx, callerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, forbidden("Unknown user")
	}
	if err != nil {
		s.logger.Error("Failed to load caller", zap.String("user_id", callerID.String()), zap.Error(err))
		return 0, internalError("Failed to verify caller")
	}
	if !caller.IsAdmin() {
		return 0, forbidden("Admin access required")
	}

	n, err := s.requeuer.RequeueFailedEmails(ctx)
	if err != nil {
		s.logger.Error("Failed to requeue emails", zap.Error(err))
		return 0, internalError("Failed to requeue failed emails")
	}
	s.logger.Info("Failed emails requeued", zap.Int64("count", n), zap.String("admin_id", callerID.String()))
	return n, nil
}
