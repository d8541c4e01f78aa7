package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"settlement-service/models"
	"settlement-service/payfast"
	"settlement-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutRequest asks for a payment link for one entity.
type CheckoutRequest struct {
	EntityType string `json:"entityType" binding:"required"`
	EntityID   string `json:"entityId" binding:"required"`
}

// CheckoutResult is the created payment and where to send the payer.
type CheckoutResult struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	Amount      decimal.Decimal `json:"amount"`
	CheckoutURL string          `json:"checkoutUrl"`
}

// CheckoutService issues pending payments and signed checkout links.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, callerID uuid.UUID, req CheckoutRequest) (*CheckoutResult, *ServiceError)
}

type checkoutServiceImpl struct {
	store       repository.Store
	merchant    payfast.MerchantConfig
	creationFee decimal.Decimal
	logger      *zap.Logger
}

// NewCheckoutService creates a new CheckoutService. creationFee is charged
// to creators to publish a workshop.
func NewCheckoutService(store repository.Store, merchant payfast.MerchantConfig, creationFee decimal.Decimal, logger *zap.Logger) CheckoutService {
	return &checkoutServiceImpl{
		store:       store,
		merchant:    merchant,
		creationFee: creationFee,
		logger:      logger,
	}
}

// checkoutTarget is what a checkout charges for.
type checkoutTarget struct {
	amount      decimal.Decimal
	workshopID  *uuid.UUID
	itemName    string
	description string
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, callerID uuid.UUID, req CheckoutRequest) (*CheckoutResult, *ServiceError) {
	entityType := models.EntityType(strings.ToLower(strings.TrimSpace(req.EntityType)))
	if !entityType.Valid() {
		return nil, badRequest("Invalid entityType. Must be booking, workshop or registration")
	}
	entityID, err := uuid.Parse(strings.TrimSpace(req.EntityID))
	if err != nil {
		return nil, badRequest("Invalid entityId")
	}

	caller, err := s.store.Users().FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("Unknown user")
		}
		s.logger.Error("Failed to load caller", zap.Error(err))
		return nil, internalError("Failed to verify caller")
	}

	target, svcErr := s.resolveTarget(ctx, caller, entityType, entityID)
	if svcErr != nil {
		return nil, svcErr
	}
	if !target.amount.IsPositive() {
		return nil, badRequest("Nothing to pay for this entity")
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		WorkshopID: target.workshopID,
		UserID:     caller.ID,
		Amount:     target.amount.Round(2),
		Status:     models.PaymentStatusPending,
	}
	if err := s.store.Payments().Create(ctx, payment); err != nil {
		s.logger.Error("Failed to create payment", zap.Error(err))
		return nil, internalError("Failed to create payment")
	}

	link := payfast.CheckoutURL(s.merchant, payfast.CheckoutRequest{
		PaymentID:       payment.ID,
		EntityID:        entityID,
		Amount:          payment.Amount,
		ItemName:        target.itemName,
		ItemDescription: target.description,
		Email:           caller.Email,
		FullName:        caller.FullName,
	})

	s.logger.Info("Checkout created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	return &CheckoutResult{PaymentID: payment.ID, Amount: payment.Amount, CheckoutURL: link}, nil
}

func (s *checkoutServiceImpl) resolveTarget(ctx context.Context, caller *models.User, entityType models.EntityType, entityID uuid.UUID) (*checkoutTarget, *ServiceError) {
	switch entityType {
	case models.EntityRegistration:
		reg, err := s.store.Registrations().FindByID(ctx, entityID)
		if err != nil {
			return nil, lookupError(err, "Registration not found", "Failed to load registration")
		}
		if reg.UserID != caller.ID {
			return nil, forbidden("Registration belongs to another user")
		}
		if reg.PaymentStatus == models.PaymentStatusPaid {
			return nil, conflict("Registration is already paid")
		}
		w, err := s.store.Workshops().FindByID(ctx, reg.WorkshopID)
		if err != nil {
			return nil, lookupError(err, "Workshop not found", "Failed to load workshop")
		}
		return &checkoutTarget{
			amount:      w.Fee,
			workshopID:  &w.ID,
			itemName:    truncate(w.Title, 100),
			description: "Workshop registration",
		}, nil

	case models.EntityWorkshop:
		w, err := s.store.Workshops().FindByID(ctx, entityID)
		if err != nil {
			return nil, lookupError(err, "Workshop not found", "Failed to load workshop")
		}
		if w.CreatorID != caller.ID {
			return nil, forbidden("Workshop belongs to another creator")
		}
		if w.IsCreationFeePaid {
			return nil, conflict("Workshop creation fee is already paid")
		}
		return &checkoutTarget{
			amount:      s.creationFee,
			workshopID:  &w.ID,
			itemName:    truncate("Workshop creation fee", 100),
			description: truncate(w.Title, 255),
		}, nil

	default:
		b, err := s.store.Bookings().FindByID(ctx, entityID)
		if err != nil {
			return nil, lookupError(err, "Booking not found", "Failed to load booking")
		}
		if b.UserID != caller.ID {
			return nil, forbidden("Booking belongs to another user")
		}
		if b.PaymentStatus == models.PaymentStatusPaid {
			return nil, conflict("Booking is already paid")
		}
		return &checkoutTarget{
			amount:      b.TotalAmount,
			itemName:    truncate(fmt.Sprintf("Suite booking %s", b.SuiteType), 100),
			description: fmt.Sprintf("%s %s", b.BookingDate.Format("2006-01-02"), b.TimeSlot),
		}, nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
