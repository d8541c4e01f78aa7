package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"settlement-service/models"
	"settlement-service/notifier"
	"settlement-service/repository"

	"go.uber.org/zap"
)

// expiryWarningDays are the days-remaining values that trigger a warning.
var expiryWarningDays = map[int]bool{7: true, 3: true, 1: true}

// ReminderSummary reports one reminder pass.
type ReminderSummary struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ReminderService sends the daily booking and subscription reminders.
type ReminderService interface {
	SendBookingReminders(ctx context.Context, now time.Time) (*ReminderSummary, error)
	CheckSubscriptionExpiry(ctx context.Context, now time.Time) (*ReminderSummary, error)
}

type reminderServiceImpl struct {
	bookings      repository.BookingRepository
	subscriptions repository.SubscriptionRepository
	notifications repository.NotificationRepository
	dispatcher    notifier.Dispatcher
	location      *time.Location
	logger        *zap.Logger
}

// NewReminderService creates a new ReminderService. Day boundaries are
// computed in loc.
func NewReminderService(
	bookings repository.BookingRepository,
	subscriptions repository.SubscriptionRepository,
	notifications repository.NotificationRepository,
	dispatcher notifier.Dispatcher,
	loc *time.Location,
	logger *zap.Logger,
) ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &reminderServiceImpl{
		bookings:      bookings,
		subscriptions: subscriptions,
		notifications: notifications,
		dispatcher:    dispatcher,
		location:      loc,
		logger:        logger,
	}
}

// SendBookingReminders notifies users of confirmed bookings that fall on the
// next calendar day.
func (s *reminderServiceImpl) SendBookingReminders(ctx context.Context, now time.Time) (*ReminderSummary, error) {
	local := now.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.location)
	end := start.AddDate(0, 0, 1)

	bookings, err := s.bookings.ListConfirmedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", start.Format("2006-01-02"), err)
	}

	summary := &ReminderSummary{Candidates: len(bookings)}
	for _, b := range bookings {
		timeSlot := b.TimeSlot
		if timeSlot == "" {
			timeSlot = "TBD"
		}
		suite := b.SuiteType
		if suite == "" {
			suite = "Suite"
		}
		body := fmt.Sprintf("Your %s booking is scheduled for tomorrow at %s.", suite, timeSlot)
		if b.Specialty != "" {
			body += " Specialty: " + b.Specialty
		}

		bookingID := b.ID
		err := s.dispatcher.Notify(ctx, notifier.Message{
			UserID:  b.UserID,
			Type:    models.NotificationBookingReminder,
			Title:   "Booking Reminder - Tomorrow",
			Body:    body,
			Subject: fmt.Sprintf("Reminder: Your Booking Tomorrow at %s", timeSlot),
			TemplateData: map[string]interface{}{
				"bookingDate": b.BookingDate.In(s.location).Format("Monday, 2 January 2006"),
				"timeSlot":    timeSlot,
				"suiteType":   suite,
				"specialty":   b.Specialty,
			},
			RelatedID: &bookingID,
		})
		if err != nil {
			s.logger.Warn("Failed to send booking reminder", zap.String("booking_id", b.ID.String()), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Sent++
	}

	s.logger.Info("Booking reminders processed",
		zap.String("date", start.Format("2006-01-02")),
		zap.Int("candidates", summary.Candidates),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// DaysRemaining rounds the time left up to whole days.
func DaysRemaining(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

// CheckSubscriptionExpiry warns users 7, 3 and 1 days before their
// subscription ends. Each warning is sent once per subscription and day count.
func (s *reminderServiceImpl) CheckSubscriptionExpiry(ctx context.Context, now time.Time) (*ReminderSummary, error) {
	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}

	summary := &ReminderSummary{}
	for _, sub := range subs {
		days := DaysRemaining(sub.EndDate, now)
		if !expiryWarningDays[days] {
			continue
		}
		summary.Candidates++
		log := s.logger.With(zap.String("subscription_id", sub.ID.String()), zap.Int("days_remaining", days))

		exists, err := s.notifications.ExistsInApp(ctx, sub.UserID, models.NotificationSubscriptionExpiry, sub.ID, &days)
		if err != nil {
			log.Warn("Failed to check existing expiry warning", zap.Error(err))
			summary.Failed++
			continue
		}
		if exists {
			summary.Skipped++
			continue
		}

		suite := strings.TrimSpace(sub.SuiteType + " Suite")
		title := "Subscription Expiring Soon"
		body := fmt.Sprintf("Your %s (%s) will expire in %d days. You have %d hours remaining. Consider renewing to continue using your benefits.",
			suite, sub.PackageType, days, sub.RemainingHours)
		if days == 1 {
			title = "Subscription Expiring Tomorrow!"
			body = fmt.Sprintf("Your %s (%s) will expire tomorrow. You have %d hours remaining. Renew now to avoid losing your hours!",
				suite, sub.PackageType, sub.RemainingHours)
		}

		subID := sub.ID
		daysCopy := days
		err = s.dispatcher.Notify(ctx, notifier.Message{
			UserID:        sub.UserID,
			Type:          models.NotificationSubscriptionExpiry,
			Title:         title,
			Body:          body,
			RelatedID:     &subID,
			DaysRemaining: &daysCopy,
			Channels:      notifier.ChannelInApp | notifier.ChannelPush,
		})
		if err != nil {
			log.Warn("Failed to send expiry warning", zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Sent++
	}

	s.logger.Info("Subscription expiry check processed",
		zap.Int("active", len(subs)),
		zap.Int("candidates", summary.Candidates),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
