package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"settlement-service/cache"
	"settlement-service/metrics"
	"settlement-service/models"
	"settlement-service/notifier"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/payfast"
	"settlement-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcomes reported back to the gateway in the webhook acknowledgment.
const (
	ResultSettled          = "settled"
	ResultAlreadyProcessed = "already_processed"
	ResultFailedRecorded   = "failed_recorded"
	ResultIgnored          = "ignored"
)

var (
	errAlreadyProcessed = errors.New("payment already processed")
	errAmountMismatch   = errors.New("amount mismatch")
)

// SettlementResult describes what a callback did.
type SettlementResult struct {
	Result             string     `json:"result"`
	PaymentID          uuid.UUID  `json:"payment_id"`
	EntityType         string     `json:"entity_type,omitempty"`
	RegistrationNumber string     `json:"registration_number,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// SettleRequest carries a verified completed payment.
type SettleRequest struct {
	PaymentID      uuid.UUID
	EntityID       uuid.UUID
	GatewayTxnID   string
	ReceivedAmount decimal.Decimal
	Payload        map[string]string
}

// FailureRequest carries a verified failed or cancelled payment.
type FailureRequest struct {
	PaymentID    uuid.UUID
	EntityID     uuid.UUID
	GatewayTxnID string
	Status       string
	Payload      map[string]string
}

// SettlementService turns gateway callbacks into payment and entity state.
type SettlementService interface {
	// ProcessNotification runs the whole webhook pipeline on raw form fields.
	ProcessNotification(ctx context.Context, fields map[string]string) (*SettlementResult, *ServiceError)
	Settle(ctx context.Context, req SettleRequest) (*SettlementResult, *ServiceError)
	RecordFailure(ctx context.Context, req FailureRequest) (*SettlementResult, *ServiceError)
}

// SettlementConfig holds the gateway secrets and reconciliation settings.
type SettlementConfig struct {
	Passphrase string
	// AmountTolerance is used as given; zero demands an exact amount.
	// LoadConfig defaults it to DefaultAmountTolerance.
	AmountTolerance decimal.Decimal
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type settlementServiceImpl struct {
	store      repository.Store
	callbacks  cache.ProcessedCallbacks
	dispatcher notifier.Dispatcher
	guard      AmountGuard
	passphrase string
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Collectors
	cw         aws_pkg.MetricsRecorder
}

// NewSettlementService creates a new SettlementService. callbacks, m and cw may be nil.
func NewSettlementService(
	store repository.Store,
	callbacks cache.ProcessedCallbacks,
	dispatcher notifier.Dispatcher,
	cfg SettlementConfig,
	logger *zap.Logger,
	m *metrics.Collectors,
	cw aws_pkg.MetricsRecorder,
) SettlementService {
	if callbacks == nil {
		callbacks = cache.NoopCallbacks{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &settlementServiceImpl{
		store:      store,
		callbacks:  callbacks,
		dispatcher: dispatcher,
		guard:      AmountGuard{Tolerance: cfg.AmountTolerance},
		passphrase: cfg.Passphrase,
		now:        now,
		logger:     logger,
		metrics:    m,
		cw:         cw,
	}
}

// ProcessNotification validates, authenticates and dispatches one callback.
func (s *settlementServiceImpl) ProcessNotification(ctx context.Context, fields map[string]string) (*SettlementResult, *ServiceError) {
	n, err := payfast.ParseNotification(fields)
	if err != nil {
		s.logger.Warn("Rejected malformed payment callback", zap.Error(err))
		s.reject("malformed")
		return nil, badRequest(err.Error())
	}

	log := s.logger.With(
		zap.String("payment_id", n.PaymentID.String()),
		zap.String("entity_id", n.EntityID.String()),
		zap.String("gateway_txn_id", n.GatewayPaymentID),
		zap.String("gateway_status", n.PaymentStatus),
	)

	if !payfast.Verify(fields, s.passphrase) {
		log.Warn("Rejected payment callback with invalid signature")
		s.reject("signature")
		return nil, unauthorized("Invalid signature")
	}

	if n.PaymentStatus == payfast.StatusComplete {
		seen, err := s.callbacks.Seen(ctx, n.GatewayPaymentID)
		if err != nil {
			log.Warn("Settled-callback cache unavailable, falling back to database", zap.Error(err))
		} else if seen {
			log.Info("Duplicate callback acknowledged from cache")
			s.duplicate()
			return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: n.PaymentID}, nil
		}
	}

	payment, svcErr := s.loadPayment(ctx, n.PaymentID, n.EntityID)
	if svcErr != nil {
		log.Warn("Rejected payment callback", zap.String("reason", svcErr.Message))
		s.reject("lookup")
		return nil, svcErr
	}

	switch n.PaymentStatus {
	case payfast.StatusComplete:
		switch s.guard.Check(payment, n.AmountGross) {
		case GuardAlreadyProcessed:
			s.logAlreadyProcessed(log, payment)
			s.duplicate()
			return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
		case GuardAmountMismatch:
			log.Error("Payment amount mismatch",
				zap.String("expected", payment.Amount.StringFixed(2)),
				zap.String("received", n.AmountGross.StringFixed(2)),
			)
			s.reject("amount")
			return nil, badRequest("Amount mismatch")
		}
		return s.settle(ctx, payment, SettleRequest{
			PaymentID:      n.PaymentID,
			EntityID:       n.EntityID,
			GatewayTxnID:   n.GatewayPaymentID,
			ReceivedAmount: n.AmountGross,
			Payload:        fields,
		})
	case payfast.StatusFailed, payfast.StatusCancelled:
		return s.recordFailure(ctx, payment, FailureRequest{
			PaymentID:    n.PaymentID,
			EntityID:     n.EntityID,
			GatewayTxnID: n.GatewayPaymentID,
			Status:       n.PaymentStatus,
			Payload:      fields,
		})
	case payfast.StatusPending:
		log.Info("Pending payment callback acknowledged")
		s.metrics.ObserveWebhook(metrics.OutcomeIgnored)
		return &SettlementResult{Result: ResultIgnored, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
	default:
		log.Warn("Unsupported payment status")
		s.reject("status")
		return nil, badRequest(fmt.Sprintf("Unsupported payment status %q", n.PaymentStatus))
	}
}

// Settle applies a completed payment. It repeats the lookups and the guard so
// it can be called directly, e.g. for manual reconciliation.
func (s *settlementServiceImpl) Settle(ctx context.Context, req SettleRequest) (*SettlementResult, *ServiceError) {
	payment, svcErr := s.loadPayment(ctx, req.PaymentID, req.EntityID)
	if svcErr != nil {
		return nil, svcErr
	}
	switch s.guard.Check(payment, req.ReceivedAmount) {
	case GuardAlreadyProcessed:
		s.logAlreadyProcessed(s.logger.With(zap.String("payment_id", payment.ID.String())), payment)
		s.duplicate()
		return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
	case GuardAmountMismatch:
		s.logger.Error("Payment amount mismatch",
			zap.String("payment_id", payment.ID.String()),
			zap.String("expected", payment.Amount.StringFixed(2)),
			zap.String("received", req.ReceivedAmount.StringFixed(2)),
		)
		s.reject("amount")
		return nil, badRequest("Amount mismatch")
	}
	return s.settle(ctx, payment, req)
}

// RecordFailure marks a pending payment failed.
func (s *settlementServiceImpl) RecordFailure(ctx context.Context, req FailureRequest) (*SettlementResult, *ServiceError) {
	payment, svcErr := s.loadPayment(ctx, req.PaymentID, req.EntityID)
	if svcErr != nil {
		return nil, svcErr
	}
	return s.recordFailure(ctx, payment, req)
}

// loadPayment resolves the payment and checks that its entity exists and
// matches the correlation field of the callback.
func (s *settlementServiceImpl) loadPayment(ctx context.Context, paymentID, entityID uuid.UUID) (*models.Payment, *ServiceError) {
	payment, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to load payment", zap.String("payment_id", paymentID.String()), zap.Error(err))
		}
		return nil, lookupError(err, "Payment record not found", "Failed to load payment")
	}
	if payment.EntityID != entityID {
		return nil, badRequest("Payment does not belong to the referenced entity")
	}

	switch payment.EntityType {
	case models.EntityBooking:
		_, err = s.store.Bookings().FindByID(ctx, entityID)
	case models.EntityWorkshop:
		_, err = s.store.Workshops().FindByID(ctx, entityID)
	case models.EntityRegistration:
		_, err = s.store.Registrations().FindByID(ctx, entityID)
	default:
		return nil, internalError(fmt.Sprintf("Unknown entity type %q", payment.EntityType))
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to load payment entity", zap.String("entity_id", entityID.String()), zap.Error(err))
		}
		return nil, lookupError(err, entityLabel(payment.EntityType)+" not found", "Failed to load entity")
	}
	return payment, nil
}

func entityLabel(t models.EntityType) string {
	switch t {
	case models.EntityBooking:
		return "Booking"
	case models.EntityWorkshop:
		return "Workshop"
	case models.EntityRegistration:
		return "Registration"
	}
	return "Entity"
}

// settleOutcome carries what the transaction learned for post-commit work.
type settleOutcome struct {
	payment            models.Payment
	registrationNumber string
	workshopTitle      string
}

func (s *settlementServiceImpl) settle(ctx context.Context, payment *models.Payment, req SettleRequest) (*SettlementResult, *ServiceError) {
	log := s.logger.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("entity_type", string(payment.EntityType)),
		zap.String("entity_id", payment.EntityID.String()),
		zap.String("gateway_txn_id", req.GatewayTxnID),
	)
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, internalError("Failed to encode gateway payload")
	}

	var out settleOutcome
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		switch s.guard.Check(p, req.ReceivedAmount) {
		case GuardAlreadyProcessed:
			return errAlreadyProcessed
		case GuardAmountMismatch:
			return errAmountMismatch
		}

		now := s.now().UTC()
		received := req.ReceivedAmount
		txnID := req.GatewayTxnID
		p.Status = models.PaymentStatusPaid
		p.GatewayTxnID = &txnID
		p.ReceivedAmount = &received
		p.CompletedAt = &now
		p.GatewayPayload = datatypes.JSON(payload)
		if err := tx.Payments().Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		out = settleOutcome{payment: *p}
		if err := s.applySettlement(ctx, tx, p, now, &out); err != nil {
			return err
		}

		return addOutbox(ctx, tx, "payment", p.ID, models.EventPaymentSettled, models.PaymentSettledEvent{
			EventType:          models.EventPaymentSettled,
			PaymentID:          p.ID.String(),
			EntityType:         p.EntityType,
			EntityID:           p.EntityID.String(),
			UserID:             p.UserID.String(),
			GatewayTxnID:       txnID,
			Amount:             p.Amount,
			ReceivedAmount:     received,
			RegistrationNumber: out.registrationNumber,
			Timestamp:          now,
		})
	})

	switch {
	case errors.Is(err, errAlreadyProcessed):
		log.Info("Concurrent duplicate callback detected under lock")
		s.duplicate()
		return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
	case errors.Is(err, errAmountMismatch):
		log.Error("Payment amount mismatch under lock",
			zap.String("expected", payment.Amount.StringFixed(2)),
			zap.String("received", req.ReceivedAmount.StringFixed(2)),
		)
		s.reject("amount")
		return nil, badRequest("Amount mismatch")
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("Settlement target disappeared", zap.Error(err))
		s.reject("lookup")
		return nil, notFound("Payment or entity not found")
	case err != nil:
		log.Error("Settlement transaction failed", zap.Error(err))
		s.metrics.ObserveWebhook(metrics.OutcomeError)
		s.record(ctx, aws_pkg.MetricPaymentFailed, payment.EntityType)
		return nil, internalError("Failed to settle payment")
	}

	log.Info("Payment settled",
		zap.String("amount", out.payment.Amount.StringFixed(2)),
		zap.String("received", req.ReceivedAmount.StringFixed(2)),
		zap.String("registration_number", out.registrationNumber),
	)
	s.metrics.ObserveWebhook(metrics.OutcomeSettled)
	s.record(ctx, aws_pkg.MetricPaymentSucceeded, payment.EntityType)

	if err := s.callbacks.Remember(ctx, req.GatewayTxnID, payment.ID.String()); err != nil {
		log.Warn("Failed to cache settled callback", zap.Error(err))
	}
	s.notifySettled(ctx, log, &out)

	return &SettlementResult{
		Result:             ResultSettled,
		PaymentID:          payment.ID,
		EntityType:         string(payment.EntityType),
		RegistrationNumber: out.registrationNumber,
		CompletedAt:        out.payment.CompletedAt,
	}, nil
}

// applySettlement performs the entity side of a settlement inside tx.
func (s *settlementServiceImpl) applySettlement(ctx context.Context, tx repository.Store, p *models.Payment, now time.Time, out *settleOutcome) error {
	switch p.EntityType {
	case models.EntityBooking:
		b, err := tx.Bookings().FindByID(ctx, p.EntityID)
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		b.PaymentStatus = models.PaymentStatusPaid
		b.PaymentCompletedAt = &now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

	case models.EntityWorkshop:
		w, err := tx.Workshops().FindByIDForUpdate(ctx, p.EntityID)
		if err != nil {
			return fmt.Errorf("lock workshop: %w", err)
		}
		w.IsCreationFeePaid = true
		w.IsActive = true
		w.PermissionStatus = models.PermissionLive
		w.PaymentStatus = models.PaymentStatusPaid
		if err := tx.Workshops().Update(ctx, w); err != nil {
			return fmt.Errorf("update workshop: %w", err)
		}
		out.workshopTitle = w.Title

	case models.EntityRegistration:
		reg, err := tx.Registrations().FindByIDForUpdate(ctx, p.EntityID)
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}
		reg.Status = models.RegistrationConfirmed
		reg.PaymentStatus = models.PaymentStatusPaid
		reg.ConfirmedAt = &now
		reg.PaymentCompletedAt = &now
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		if reg.RegistrationNumber == nil {
			number, err := tx.Registrations().AssignNumber(ctx, reg.ID, func() string { return RegistrationNumber(now) })
			if err != nil {
				return fmt.Errorf("assign registration number: %w", err)
			}
			reg.RegistrationNumber = &number
		}
		out.registrationNumber = *reg.RegistrationNumber

		w, err := tx.Workshops().FindByIDForUpdate(ctx, reg.WorkshopID)
		if err != nil {
			return fmt.Errorf("lock workshop: %w", err)
		}
		if w.HasCapacity() {
			w.CurrentParticipants++
		} else {
			s.logger.Warn("Paid registration exceeds workshop capacity",
				zap.String("workshop_id", w.ID.String()),
				zap.Int("max_participants", w.MaxParticipants),
			)
		}
		w.RevenueCheckedAt = nil
		if w.RevenueTrackingStartedAt == nil {
			w.RevenueTrackingStartedAt = &now
			w.RevenueReleased = false
			w.PaymentHold = false
			w.TotalRevenue = decimal.Zero
			w.TotalFees = decimal.Zero
			w.NetRevenue = decimal.Zero
		}
		if err := tx.Workshops().Update(ctx, w); err != nil {
			return fmt.Errorf("update workshop: %w", err)
		}
		out.workshopTitle = w.Title
	}
	return nil
}

// RegistrationNumber formats WS-<year>-<8 random hex digits>.
func RegistrationNumber(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("WS-%d-%s", t.Year(), strings.ToUpper(suffix))
}

func (s *settlementServiceImpl) recordFailure(ctx context.Context, payment *models.Payment, req FailureRequest) (*SettlementResult, *ServiceError) {
	log := s.logger.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("entity_type", string(payment.EntityType)),
		zap.String("gateway_status", req.Status),
	)
	if payment.IsTerminal() {
		s.logAlreadyProcessed(log, payment)
		s.duplicate()
		return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, internalError("Failed to encode gateway payload")
	}

	reason := strings.ToLower(req.Status)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		if p.IsTerminal() {
			return errAlreadyProcessed
		}

		now := s.now().UTC()
		p.Status = models.PaymentStatusFailed
		p.FailureReason = reason
		p.CompletedAt = &now
		p.GatewayPayload = datatypes.JSON(payload)
		if req.GatewayTxnID != "" {
			txnID := req.GatewayTxnID
			p.GatewayTxnID = &txnID
		}
		if err := tx.Payments().Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		switch p.EntityType {
		case models.EntityBooking:
			b, err := tx.Bookings().FindByID(ctx, p.EntityID)
			if err != nil {
				return fmt.Errorf("load booking: %w", err)
			}
			b.PaymentStatus = models.PaymentStatusFailed
			if err := tx.Bookings().Update(ctx, b); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
		case models.EntityRegistration:
			reg, err := tx.Registrations().FindByIDForUpdate(ctx, p.EntityID)
			if err != nil {
				return fmt.Errorf("lock registration: %w", err)
			}
			reg.PaymentStatus = models.PaymentStatusFailed
			if err := tx.Registrations().Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration: %w", err)
			}
		}

		return addOutbox(ctx, tx, "payment", p.ID, models.EventPaymentFailed, models.PaymentFailedEvent{
			EventType:    models.EventPaymentFailed,
			PaymentID:    p.ID.String(),
			EntityType:   p.EntityType,
			EntityID:     p.EntityID.String(),
			GatewayTxnID: req.GatewayTxnID,
			Reason:       reason,
			Timestamp:    now,
		})
	})

	switch {
	case errors.Is(err, errAlreadyProcessed):
		s.duplicate()
		return &SettlementResult{Result: ResultAlreadyProcessed, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
	case err != nil:
		log.Error("Failed to record payment failure", zap.Error(err))
		s.metrics.ObserveWebhook(metrics.OutcomeError)
		return nil, internalError("Failed to record payment failure")
	}

	log.Info("Payment failure recorded", zap.String("reason", reason))
	s.metrics.ObserveWebhook(metrics.OutcomeFailedRecorded)
	s.record(ctx, aws_pkg.MetricPaymentFailed, payment.EntityType)

	if err := s.dispatcher.Notify(ctx, notifier.Message{
		UserID:       payment.UserID,
		Type:         models.NotificationPaymentFailed,
		Title:        "Payment Unsuccessful",
		Body:         fmt.Sprintf("Your payment of PKR %s was %s. Please try again.", payment.Amount.StringFixed(2), reason),
		Subject:      "Payment Unsuccessful - Sehat Makaan",
		TemplateData: map[string]interface{}{"amount": payment.Amount.StringFixed(2), "reason": reason, "entityType": string(payment.EntityType)},
		RelatedID:    &payment.EntityID,
		Channels:     notifier.ChannelEmail | notifier.ChannelInApp,
	}); err != nil {
		log.Warn("Failed to enqueue payment failure notification", zap.Error(err))
	}

	return &SettlementResult{Result: ResultFailedRecorded, PaymentID: payment.ID, EntityType: string(payment.EntityType)}, nil
}

func (s *settlementServiceImpl) notifySettled(ctx context.Context, log *zap.Logger, out *settleOutcome) {
	p := out.payment
	amount := p.Amount.StringFixed(2)
	// Push is left to the delivery side so the webhook only records intent.
	msg := notifier.Message{
		UserID:       p.UserID,
		RelatedID:    &p.EntityID,
		Channels:     notifier.ChannelEmail | notifier.ChannelInApp,
		TemplateData: map[string]interface{}{"amount": amount, "paymentId": p.ID.String()},
	}
	if p.GatewayTxnID != nil {
		msg.TemplateData["gatewayTxnId"] = *p.GatewayTxnID
	}

	switch p.EntityType {
	case models.EntityBooking:
		msg.Type = models.NotificationPaymentConfirmed
		msg.Title = "Booking Payment Confirmed"
		msg.Body = fmt.Sprintf("Your payment of PKR %s has been received. Your booking is confirmed.", amount)
		msg.Subject = "Payment Confirmed - Sehat Makaan"
	case models.EntityWorkshop:
		msg.Type = models.NotificationWorkshopLive
		msg.Title = "Workshop is Live"
		msg.Body = fmt.Sprintf("Your creation fee was received and %q is now live.", out.workshopTitle)
		msg.Subject = "Your Workshop is Live - Sehat Makaan"
		msg.TemplateData["workshopTitle"] = out.workshopTitle
	case models.EntityRegistration:
		msg.Type = models.NotificationRegistrationPaid
		msg.Title = "Registration Confirmed"
		msg.Body = fmt.Sprintf("You are registered for %q. Registration number: %s.", out.workshopTitle, out.registrationNumber)
		msg.Subject = "Workshop Registration Confirmed - Sehat Makaan"
		msg.TemplateData["workshopTitle"] = out.workshopTitle
		msg.TemplateData["registrationNumber"] = out.registrationNumber
	}

	if err := s.dispatcher.Notify(ctx, msg); err != nil {
		log.Warn("Failed to enqueue settlement notification", zap.Error(err))
	}
}

// logAlreadyProcessed flags callbacks for payments that already failed,
// since those may need manual reconciliation.
func (s *settlementServiceImpl) logAlreadyProcessed(log *zap.Logger, p *models.Payment) {
	if p.Status == models.PaymentStatusFailed {
		log.Error("Callback received for a failed payment; manual reconciliation required",
			zap.String("status", p.Status),
			zap.String("failure_reason", p.FailureReason),
		)
		return
	}
	log.Info("Duplicate callback for settled payment acknowledged")
}

func (s *settlementServiceImpl) reject(reason string) {
	s.metrics.ObserveWebhook(metrics.OutcomeRejected)
	if s.cw != nil {
		_ = s.cw.RecordCount(context.Background(), aws_pkg.MetricPaymentRejected, map[string]string{"Reason": reason})
	}
}

func (s *settlementServiceImpl) duplicate() {
	s.metrics.ObserveWebhook(metrics.OutcomeAlreadyProcessed)
	if s.cw != nil {
		_ = s.cw.RecordCount(context.Background(), aws_pkg.MetricPaymentDuplicate, nil)
	}
}

func (s *settlementServiceImpl) record(ctx context.Context, metric string, entity models.EntityType) {
	if s.cw == nil {
		return
	}
	if err := s.cw.RecordCount(ctx, metric, map[string]string{"EntityType": string(entity)}); err != nil {
		s.logger.Debug("Failed to record CloudWatch metric", zap.String("metric", metric), zap.Error(err))
	}
}

// addOutbox serializes event into an outbox row within tx.
func addOutbox(ctx context.Context, tx repository.Store, aggregateType string, aggregateID uuid.UUID, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if err := tx.Outbox().Add(ctx, &models.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       datatypes.JSON(payload),
	}); err != nil {
		return fmt.Errorf("write %s outbox message: %w", eventType, err)
	}
	return nil
}
