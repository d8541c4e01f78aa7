package services

import (
	"context"
	"errors"
	"strings"

	"settlement-service/models"
	"settlement-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Payout history paging bounds.
const (
	DefaultPayoutPageSize = 20
	MaxPayoutPageSize     = 50
)

// PayoutControlRequest is the admin payout control payload.
type PayoutControlRequest struct {
	WorkshopID string `json:"workshopId" binding:"required"`
	Action     string `json:"action" binding:"required"`
	Reason     string `json:"reason"`
}

// PayoutControlResult reports the state after an admin action.
type PayoutControlResult struct {
	Action   string           `json:"action"`
	Workshop *models.Workshop `json:"workshop,omitempty"`
	Payout   *models.Payout   `json:"payout,omitempty"`
}

// PayoutHistoryQuery selects payouts by workshop or by creator.
type PayoutHistoryQuery struct {
	WorkshopID string
	CreatorID  string
	Page       int
	Limit      int
}

// PayoutHistoryPage is one page of payouts, newest first.
type PayoutHistoryPage struct {
	Payouts []models.Payout `json:"payouts"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

// ControlPayout authorizes the caller as an admin and applies hold, unhold or
// release. The caller's role is always read from the database.
func (s *revenueServiceImpl) ControlPayout(ctx context.Context, callerID uuid.UUID, req PayoutControlRequest) (*PayoutControlResult, *ServiceError) {
	caller, svcErr := s.resolveCaller(ctx, callerID)
	if svcErr != nil {
		return nil, svcErr
	}
	if !caller.IsAdmin() {
		s.logger.Warn("Non-admin attempted payout control", zap.String("user_id", callerID.String()), zap.String("role", caller.Role))
		return nil, forbidden("Admin access required")
	}

	workshopID, err := uuid.Parse(strings.TrimSpace(req.WorkshopID))
	if err != nil {
		return nil, badRequest("Invalid workshopId")
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))

	result := &PayoutControlResult{Action: action}
	switch action {
	case models.AdminActionHold:
		result.Workshop, svcErr = s.Hold(ctx, workshopID, caller.ID, req.Reason)
	case models.AdminActionUnhold:
		result.Workshop, svcErr = s.Unhold(ctx, workshopID, caller.ID, req.Reason)
	case models.AdminActionRelease:
		result.Payout, svcErr = s.Release(ctx, workshopID, caller.ID, req.Reason)
	default:
		return nil, badRequest("Invalid action. Must be hold, unhold or release")
	}
	if svcErr != nil {
		return nil, svcErr
	}
	return result, nil
}

// PayoutHistory lists payouts for exactly one workshop or creator. Only an
// admin or the creator who owns the payouts may read them.
func (s *revenueServiceImpl) PayoutHistory(ctx context.Context, callerID uuid.UUID, q PayoutHistoryQuery) (*PayoutHistoryPage, *ServiceError) {
	hasWorkshop := strings.TrimSpace(q.WorkshopID) != ""
	hasCreator := strings.TrimSpace(q.CreatorID) != ""
	if hasWorkshop == hasCreator {
		return nil, badRequest("Provide exactly one of workshopId or creatorId")
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPayoutPageSize
	}
	if limit > MaxPayoutPageSize {
		limit = MaxPayoutPageSize
	}

	caller, svcErr := s.resolveCaller(ctx, callerID)
	if svcErr != nil {
		return nil, svcErr
	}

	var (
		filter repository.PayoutFilter
		owner  uuid.UUID
	)
	if hasWorkshop {
		workshopID, err := uuid.Parse(strings.TrimSpace(q.WorkshopID))
		if err != nil {
			return nil, badRequest("Invalid workshopId")
		}
		w, err := s.store.Workshops().FindByID(ctx, workshopID)
		if err != nil {
			return nil, lookupError(err, "Workshop not found", "Failed to load workshop")
		}
		filter.WorkshopID = &workshopID
		owner = w.CreatorID
	} else {
		creatorID, err := uuid.Parse(strings.TrimSpace(q.CreatorID))
		if err != nil {
			return nil, badRequest("Invalid creatorId")
		}
		filter.CreatorID = &creatorID
		owner = creatorID
	}

	if !caller.IsAdmin() && caller.ID != owner {
		return nil, forbidden("Not allowed to view these payouts")
	}

	payouts, total, err := s.store.Payouts().List(ctx, filter, page, limit)
	if err != nil {
		s.logger.Error("Failed to list payouts", zap.Error(err))
		return nil, internalError("Failed to fetch payout history")
	}
	if payouts == nil {
		payouts = []models.Payout{}
	}
	return &PayoutHistoryPage{Payouts: payouts, Total: total, Page: page, Limit: limit}, nil
}

// resolveCaller loads the authenticated user. Unknown users are treated as
// unauthorized for every payout operation.
func (s *revenueServiceImpl) resolveCaller(ctx context.Context, callerID uuid.UUID) (*models.User, *ServiceError) {
	caller, err := s.store.Users().FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, forbidden("Unknown user")
		}
		s.logger.Error("Failed to load caller", zap.String("user_id", callerID.String()), zap.Error(err))
		return nil, internalError("Failed to verify caller")
	}
	return caller, nil
}
