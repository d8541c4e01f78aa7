package services

import (
	"context"
	"time"
)

// Job names accepted by the scheduler, the SQS trigger and the CLI.
const (
	JobRevenueRelease     = "revenue-release"
	JobBookingReminders   = "booking-reminders"
	JobSubscriptionExpiry = "subscription-expiry"
)

// RevenueReleaseJob runs ReleaseDue on a schedule.
type RevenueReleaseJob struct{ Service RevenueService }

func (RevenueReleaseJob) Name() string { return JobRevenueRelease }

func (j RevenueReleaseJob) Run(ctx context.Context, now time.Time) error {
	_, err := j.Service.ReleaseDue(ctx, now)
	return err
}

// BookingReminderJob sends tomorrow's booking reminders.
type BookingReminderJob struct{ Service ReminderService }

func (BookingReminderJob) Name() string { return JobBookingReminders }

func (j BookingReminderJob) Run(ctx context.Context, now time.Time) error {
	_, err := j.Service.SendBookingReminders(ctx, now)
	return err
}

// SubscriptionExpiryJob sends subscription expiry warnings.
type SubscriptionExpiryJob struct{ Service ReminderService }

func (SubscriptionExpiryJob) Name() string { return JobSubscriptionExpiry }

func (j SubscriptionExpiryJob) Run(ctx context.Context, now time.Time) error {
	_, err := j.Service.CheckSubscriptionExpiry(ctx, now)
	return err
}
