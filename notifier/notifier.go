// Package notifier records notification intents. Emails are queued for a
// separate delivery worker, in-app messages are stored directly and pushes go
// out through SNS mobile endpoints. None of it is transactional with the
// settlement that triggered it.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"settlement-service/metrics"
	"settlement-service/models"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Channel selects how a message reaches its recipient.
type Channel uint8

const (
	ChannelEmail Channel = 1 << iota
	ChannelInApp
	ChannelPush

	ChannelAll = ChannelEmail | ChannelInApp | ChannelPush
)

// Message is one notification for one user.
type Message struct {
	UserID        uuid.UUID
	Type          string
	Title         string
	Body          string
	Subject       string
	Template      string
	TemplateData  map[string]interface{}
	RelatedID     *uuid.UUID
	DaysRemaining *int
	Channels      Channel
}

// Dispatcher is what business services depend on.
type Dispatcher interface {
	Notify(ctx context.Context, msg Message) error
}

type Notifier struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	push          aws_pkg.PushPublisher
	logger        *zap.Logger
	metrics       *metrics.Collectors
}

// New creates a Notifier. push may be nil, in which case push delivery is skipped.
func New(users repository.UserRepository, notifications repository.NotificationRepository, push aws_pkg.PushPublisher, logger *zap.Logger, m *metrics.Collectors) *Notifier {
	return &Notifier{
		users:         users,
		notifications: notifications,
		push:          push,
		logger:        logger,
		metrics:       m,
	}
}

// Notify writes msg to every requested channel. Each channel is attempted even
// when an earlier one fails; the failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	user, err := n.users.FindByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", msg.UserID, err)
	}

	channels := msg.Channels
	if channels == 0 {
		channels = ChannelAll
	}

	var errs []error
	if channels&ChannelEmail != 0 {
		if err := n.enqueueEmail(ctx, user, msg); err != nil {
			n.metrics.ObserveNotificationError("email")
			errs = append(errs, fmt.Errorf("enqueue email: %w", err))
		}
	}
	if channels&ChannelInApp != 0 {
		if err := n.createInApp(ctx, msg); err != nil {
			n.metrics.ObserveNotificationError("in_app")
			errs = append(errs, fmt.Errorf("create in-app notification: %w", err))
		}
	}
	if channels&ChannelPush != 0 && n.push != nil && user.PushEndpointARN != nil && *user.PushEndpointARN != "" {
		if err := n.sendPush(ctx, user, msg); err != nil {
			n.metrics.ObserveNotificationError("push")
			errs = append(errs, fmt.Errorf("send push: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) enqueueEmail(ctx context.Context, user *models.User, msg Message) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}

	data := map[string]interface{}{"userName": user.DisplayName()}
	for k, v := range msg.TemplateData {
		data[k] = v
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	template := msg.Template
	if template == "" {
		template = msg.Type
	}
	subject := msg.Subject
	if subject == "" {
		subject = msg.Title
	}

	return n.notifications.EnqueueEmail(ctx, &models.EmailQueueItem{
		To:           user.Email,
		Subject:      subject,
		Template:     template,
		TemplateData: datatypes.JSON(raw),
		Status:       models.EmailStatusPending,
	})
}

func (n *Notifier) createInApp(ctx context.Context, msg Message) error {
	return n.notifications.CreateInApp(ctx, &models.Notification{
		UserID:        msg.UserID,
		Type:          msg.Type,
		Title:         msg.Title,
		Message:       msg.Body,
		RelatedID:     msg.RelatedID,
		DaysRemaining: msg.DaysRemaining,
	})
}

func (n *Notifier) sendPush(ctx context.Context, user *models.User, msg Message) error {
	payload, err := pushPayload(msg)
	if err != nil {
		return err
	}

	err = n.push.PublishToEndpoint(ctx, *user.PushEndpointARN, payload)
	if err == nil {
		return nil
	}
	if aws_pkg.IsEndpointGone(err) {
		n.logger.Info("Clearing stale push endpoint", zap.String("user_id", user.ID.String()))
		if clearErr := n.users.ClearPushEndpoint(ctx, user.ID); clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return nil
	}
	return err
}

// pushPayload builds the SNS message structure with a default body and an
// FCM-specific notification.
func pushPayload(msg Message) ([]byte, error) {
	data := map[string]string{"type": msg.Type}
	if msg.RelatedID != nil {
		data["relatedId"] = msg.RelatedID.String()
	}
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         data,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(gcm),
	})
}

// RequeueFailedEmails puts failed emails with retries left back in the queue.
func (n *Notifier) RequeueFailedEmails(ctx context.Context) (int64, error) {
	count, err := n.notifications.RequeueFailedEmails(ctx, models.MaxEmailRetries)
	if err != nil {
		return 0, fmt.Errorf("requeue failed emails: %w", err)
	}
	n.logger.Info("Requeued failed emails", zap.Int64("count", count))
	return count, nil
}
