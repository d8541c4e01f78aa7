package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-service/metrics"
	"settlement-service/models"
	"settlement-service/notifier"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Defaults for the automatic release pass.
const (
	DefaultReleaseDelay     = time.Hour
	DefaultReleaseBatchSize = 100
)

var (
	errReleaseSkipped = errors.New("workshop no longer eligible for release")
	errNoPaidPayments = errors.New("workshop has no paid registrations")
)

// ReleaseSummary reports one automatic release pass.
type ReleaseSummary struct {
	Scanned  int             `json:"scanned"`
	Released int             `json:"released"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	TotalNet decimal.Decimal `json:"total_net"`
}

// RevenueService releases workshop revenue to creators and exposes the admin
// controls around it.
type RevenueService interface {
	ReleaseDue(ctx context.Context, now time.Time) (*ReleaseSummary, error)
	Hold(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Workshop, *ServiceError)
	Unhold(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Workshop, *ServiceError)
	Release(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Payout, *ServiceError)
	ControlPayout(ctx context.Context, callerID uuid.UUID, req PayoutControlRequest) (*PayoutControlResult, *ServiceError)
	PayoutHistory(ctx context.Context, callerID uuid.UUID, q PayoutHistoryQuery) (*PayoutHistoryPage, *ServiceError)
}

// RevenueConfig tunes the automatic release.
type RevenueConfig struct {
	// ReleaseDelay is how long after a workshop ends its revenue becomes releasable.
	ReleaseDelay time.Duration
	BatchSize    int
	Now          func() time.Time
}

type revenueServiceImpl struct {
	store      repository.Store
	dispatcher notifier.Dispatcher
	delay      time.Duration
	batchSize  int
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Collectors
	cw         aws_pkg.MetricsRecorder
}

// NewRevenueService creates a new RevenueService. m and cw may be nil.
func NewRevenueService(
	store repository.Store,
	dispatcher notifier.Dispatcher,
	cfg RevenueConfig,
	logger *zap.Logger,
	m *metrics.Collectors,
	cw aws_pkg.MetricsRecorder,
) RevenueService {
	if cfg.ReleaseDelay <= 0 {
		cfg.ReleaseDelay = DefaultReleaseDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReleaseBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &revenueServiceImpl{
		store:      store,
		dispatcher: dispatcher,
		delay:      cfg.ReleaseDelay,
		batchSize:  cfg.BatchSize,
		now:        cfg.Now,
		logger:     logger,
		metrics:    m,
		cw:         cw,
	}
}

// ReleaseDue releases every eligible workshop. A failure on one workshop is
// logged and counted; the rest of the batch still runs.
func (s *revenueServiceImpl) ReleaseDue(ctx context.Context, now time.Time) (*ReleaseSummary, error) {
	cutoff := now.Add(-s.delay)
	workshops, err := s.store.Workshops().ListDueForRelease(ctx, cutoff, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list workshops due for release: %w", err)
	}

	summary := &ReleaseSummary{Scanned: len(workshops), TotalNet: decimal.Zero}
	for _, w := range workshops {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Revenue release interrupted", zap.Int("remaining", summary.Scanned-summary.Released-summary.Skipped-summary.Failed))
			return summary, err
		}

		log := s.logger.With(zap.String("workshop_id", w.ID.String()))
		payout, err := s.release(ctx, w.ID, releaseParams{
			releaseType: models.ReleaseTypeAutomatic,
			releasedBy:  models.ReleasedBySystem,
			notes:       "Automatic release after workshop completion",
			cutoff:      cutoff,
			now:         now.UTC(),
		})
		switch {
		case errors.Is(err, errReleaseSkipped):
			log.Info("Workshop no longer eligible, skipping")
			summary.Skipped++
		case errors.Is(err, errNoPaidPayments):
			log.Info("Workshop has no paid registrations, no payout created")
			summary.Skipped++
		case err != nil:
			log.Error("Failed to release workshop revenue", zap.Error(err))
			summary.Failed++
			if s.cw != nil {
				_ = s.cw.RecordCount(ctx, aws_pkg.MetricPayoutFailed, nil)
			}
		default:
			summary.Released++
			summary.TotalNet = summary.TotalNet.Add(payout.NetAmount)
		}
	}

	s.logger.Info("Revenue release pass complete",
		zap.Int("scanned", summary.Scanned),
		zap.Int("released", summary.Released),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.String("total_net", summary.TotalNet.StringFixed(2)),
	)
	return summary, nil
}

type releaseParams struct {
	releaseType string
	releasedBy  string
	notes       string
	// cutoff is only checked for automatic releases.
	cutoff time.Time
	now    time.Time
}

// release creates a payout for one workshop in a single transaction and
// notifies after commit.
func (s *revenueServiceImpl) release(ctx context.Context, workshopID uuid.UUID, params releaseParams) (*models.Payout, error) {
	manual := params.releaseType == models.ReleaseTypeManual

	var (
		payout     *models.Payout
		workshop   models.Workshop
		superseded *uuid.UUID
		empty      bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		w, err := tx.Workshops().FindByIDForUpdate(ctx, workshopID)
		if err != nil {
			return fmt.Errorf("lock workshop: %w", err)
		}
		if !manual && !w.EligibleForAutomaticRelease(params.cutoff) {
			return errReleaseSkipped
		}

		payments, err := tx.Payments().ListPaidByWorkshop(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("list paid payments: %w", err)
		}
		if len(payments) == 0 {
			if manual {
				return errNoPaidPayments
			}
			// Mark the workshop so later passes move on to other rows.
			w.RevenueCheckedAt = &params.now
			if err := tx.Workshops().Update(ctx, w); err != nil {
				return fmt.Errorf("mark workshop checked: %w", err)
			}
			empty = true
			return nil
		}
		amounts := make([]decimal.Decimal, len(payments))
		for i, p := range payments {
			amounts[i] = p.Amount
		}
		breakdown := CalculatePayout(amounts)

		payoutID := uuid.New()
		if manual {
			prior, err := tx.Payouts().FindActiveByWorkshop(ctx, w.ID)
			switch {
			case err == nil:
				if err := tx.Payouts().MarkSuperseded(ctx, prior.ID, payoutID, params.now); err != nil {
					return fmt.Errorf("supersede payout %s: %w", prior.ID, err)
				}
				superseded = &prior.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("find active payout: %w", err)
			}
		}

		payout = &models.Payout{
			ID:                payoutID,
			WorkshopID:        w.ID,
			CreatorID:         w.CreatorID,
			TotalRevenue:      breakdown.TotalRevenue,
			TotalTransactions: breakdown.TotalTransactions,
			TotalFees:         breakdown.TotalFees,
			NetAmount:         breakdown.NetAmount,
			Status:            models.PayoutStatusReleased,
			ReleaseType:       params.releaseType,
			ReleasedBy:        params.releasedBy,
			ReleasedAt:        params.now,
			Notes:             params.notes,
		}
		if err := tx.Payouts().Create(ctx, payout); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}

		w.RevenueReleased = true
		w.TotalRevenue = breakdown.TotalRevenue
		w.TotalFees = breakdown.TotalFees
		w.NetRevenue = breakdown.NetAmount
		w.PayoutID = &payoutID
		w.RevenueReleasedAt = &params.now
		if manual {
			w.PaymentHold = false
			w.HoldReason = ""
		}
		if err := tx.Workshops().Update(ctx, w); err != nil {
			return fmt.Errorf("update workshop: %w", err)
		}
		workshop = *w

		event := models.PayoutReleasedEvent{
			EventType:         models.EventPayoutReleased,
			PayoutID:          payoutID.String(),
			WorkshopID:        w.ID.String(),
			CreatorID:         w.CreatorID.String(),
			ReleaseType:       params.releaseType,
			ReleasedBy:        params.releasedBy,
			TotalRevenue:      breakdown.TotalRevenue,
			TotalFees:         breakdown.TotalFees,
			NetAmount:         breakdown.NetAmount,
			TotalTransactions: breakdown.TotalTransactions,
			Timestamp:         params.now,
		}
		if superseded != nil {
			event.SupersedesPayout = superseded.String()
		}
		return addOutbox(ctx, tx, "workshop", w.ID, models.EventPayoutReleased, event)
	})
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, errNoPaidPayments
	}

	s.logger.Info("Workshop revenue released",
		zap.String("workshop_id", workshop.ID.String()),
		zap.String("payout_id", payout.ID.String()),
		zap.String("release_type", payout.ReleaseType),
		zap.String("released_by", payout.ReleasedBy),
		zap.Int("transactions", payout.TotalTransactions),
		zap.String("total_revenue", payout.TotalRevenue.StringFixed(2)),
		zap.String("total_fees", payout.TotalFees.StringFixed(2)),
		zap.String("net_amount", payout.NetAmount.StringFixed(2)),
	)
	net, _ := payout.NetAmount.Float64()
	s.metrics.ObservePayout(payout.ReleaseType, net)
	if s.cw != nil {
		_ = s.cw.RecordCount(ctx, aws_pkg.MetricPayoutReleased, map[string]string{"ReleaseType": payout.ReleaseType})
		_ = s.cw.RecordValue(ctx, aws_pkg.MetricPayoutNetAmount, net, nil)
	}

	s.notifyReleased(ctx, &workshop, payout)
	return payout, nil
}

func (s *revenueServiceImpl) notifyReleased(ctx context.Context, w *models.Workshop, payout *models.Payout) {
	log := s.logger.With(zap.String("workshop_id", w.ID.String()), zap.String("payout_id", payout.ID.String()))
	net := payout.NetAmount.StringFixed(2)
	data := map[string]interface{}{
		"workshopTitle":     w.Title,
		"totalRevenue":      payout.TotalRevenue.StringFixed(2),
		"totalFees":         payout.TotalFees.StringFixed(2),
		"netAmount":         net,
		"totalTransactions": payout.TotalTransactions,
		"releaseType":       payout.ReleaseType,
	}

	if err := s.dispatcher.Notify(ctx, notifier.Message{
		UserID:       w.CreatorID,
		Type:         models.NotificationPayoutReleased,
		Title:        "Workshop Revenue Released",
		Body:         fmt.Sprintf("PKR %s from %q has been released to you.", net, w.Title),
		Subject:      "Your Workshop Revenue Has Been Released - Sehat Makaan",
		TemplateData: data,
		RelatedID:    &w.ID,
		Channels:     notifier.ChannelEmail | notifier.ChannelInApp,
	}); err != nil {
		log.Warn("Failed to notify creator of payout", zap.Error(err))
	}

	admins, err := s.store.Users().ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		log.Warn("Failed to list admins for payout notification", zap.Error(err))
		return
	}
	for _, admin := range admins {
		if err := s.dispatcher.Notify(ctx, notifier.Message{
			UserID:    admin.ID,
			Type:      models.NotificationPayoutReleasedAdm,
			Title:     "Payout Released",
			Body:      fmt.Sprintf("%s payout of PKR %s released for %q.", payout.ReleaseType, net, w.Title),
			RelatedID: &w.ID,
			Channels:  notifier.ChannelInApp,
		}); err != nil {
			log.Warn("Failed to notify admin of payout", zap.String("admin_id", admin.ID.String()), zap.Error(err))
		}
	}
}

// Hold suspends automatic release for a workshop.
func (s *revenueServiceImpl) Hold(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Workshop, *ServiceError) {
	w, svcErr := s.setHold(ctx, workshopID, true, reason)
	if svcErr != nil {
		return nil, svcErr
	}
	s.audit(ctx, models.AdminActionHold, workshopID, adminID, reason, nil)

	if err := s.dispatcher.Notify(ctx, notifier.Message{
		UserID:       w.CreatorID,
		Type:         models.NotificationPayoutHeld,
		Title:        "Payout On Hold",
		Body:         fmt.Sprintf("The payout for %q has been placed on hold.", w.Title),
		Subject:      "Workshop Payout On Hold - Sehat Makaan",
		TemplateData: map[string]interface{}{"workshopTitle": w.Title, "reason": reason},
		RelatedID:    &w.ID,
		Channels:     notifier.ChannelEmail | notifier.ChannelInApp,
	}); err != nil {
		s.logger.Warn("Failed to notify creator of hold", zap.String("workshop_id", w.ID.String()), zap.Error(err))
	}
	return w, nil
}

// Unhold clears a hold so the next automatic pass picks the workshop up.
func (s *revenueServiceImpl) Unhold(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Workshop, *ServiceError) {
	w, svcErr := s.setHold(ctx, workshopID, false, reason)
	if svcErr != nil {
		return nil, svcErr
	}
	s.audit(ctx, models.AdminActionUnhold, workshopID, adminID, reason, nil)

	if err := s.dispatcher.Notify(ctx, notifier.Message{
		UserID:    w.CreatorID,
		Type:      models.NotificationPayoutHoldLifted,
		Title:     "Payout Hold Lifted",
		Body:      fmt.Sprintf("The hold on the payout for %q has been lifted.", w.Title),
		RelatedID: &w.ID,
		Channels:  notifier.ChannelInApp,
	}); err != nil {
		s.logger.Warn("Failed to notify creator of hold removal", zap.String("workshop_id", w.ID.String()), zap.Error(err))
	}
	return w, nil
}

// setHold flips the hold flag under the workshop row lock so it cannot race
// with a release writing the same row.
func (s *revenueServiceImpl) setHold(ctx context.Context, workshopID uuid.UUID, hold bool, reason string) (*models.Workshop, *ServiceError) {
	var updated models.Workshop
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		w, err := tx.Workshops().FindByIDForUpdate(ctx, workshopID)
		if err != nil {
			return err
		}
		w.PaymentHold = hold
		if hold {
			w.HoldReason = reason
		} else {
			w.HoldReason = ""
		}
		if err := tx.Workshops().Update(ctx, w); err != nil {
			return err
		}
		updated = *w
		return nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to update payout hold", zap.String("workshop_id", workshopID.String()), zap.Error(err))
		}
		return nil, lookupError(err, "Workshop not found", "Failed to update payout hold")
	}
	s.logger.Info("Payout hold updated",
		zap.String("workshop_id", workshopID.String()),
		zap.Bool("payment_hold", hold),
		zap.String("reason", reason),
	)
	return &updated, nil
}

// Release pays out a workshop immediately, ignoring the schedule and any hold.
// A previous payout for the workshop is superseded by the new one.
func (s *revenueServiceImpl) Release(ctx context.Context, workshopID, adminID uuid.UUID, reason string) (*models.Payout, *ServiceError) {
	notes := reason
	if notes == "" {
		notes = "Manual release by admin"
	}
	payout, err := s.release(ctx, workshopID, releaseParams{
		releaseType: models.ReleaseTypeManual,
		releasedBy:  adminID.String(),
		notes:       notes,
		now:         s.now().UTC(),
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, notFound("Workshop not found")
	case errors.Is(err, errNoPaidPayments):
		return nil, badRequest("Workshop has no paid registrations to release")
	case err != nil:
		s.logger.Error("Manual release failed", zap.String("workshop_id", workshopID.String()), zap.Error(err))
		return nil, internalError("Failed to release payout")
	}

	s.audit(ctx, models.AdminActionRelease, workshopID, adminID, reason, map[string]interface{}{
		"payoutId":  payout.ID.String(),
		"netAmount": payout.NetAmount.StringFixed(2),
	})
	return payout, nil
}

// audit writes the admin action log. It is a separate write from the action
// itself, so a failure here is only logged.
func (s *revenueServiceImpl) audit(ctx context.Context, action string, workshopID, adminID uuid.UUID, reason string, metadata map[string]interface{}) {
	entry := &models.AdminAction{
		Action:     action,
		WorkshopID: workshopID,
		AdminID:    adminID,
		Reason:     reason,
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := s.store.AdminActions().Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write admin action audit entry",
			zap.String("action", action),
			zap.String("workshop_id", workshopID.String()),
			zap.String("admin_id", adminID.String()),
			zap.Error(err),
		)
	}
}
