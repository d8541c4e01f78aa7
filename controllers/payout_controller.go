package controllers

import (
	"net/http"
	"strconv"

	"settlement-service/middleware"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
)

// PayoutController exposes admin payout control and payout history.
type PayoutController struct {
	revenue services.RevenueService
}

func NewPayoutController(svc services.RevenueService) *PayoutController {
	return &PayoutController{revenue: svc}
}

// ControlPayout handles POST /admin/payouts/control
func (pc *PayoutController) ControlPayout(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.PayoutControlRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, svcErr := pc.revenue.ControlPayout(ctx.Request.Context(), userID, req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// PayoutHistory handles GET /payouts?workshopId=|creatorId=&page&limit
func (pc *PayoutController) PayoutHistory(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(ctx)
	result, svcErr := pc.revenue.PayoutHistory(ctx.Request.Context(), userID, services.PayoutHistoryQuery{
		WorkshopID: ctx.Query("workshopId"),
		CreatorID:  ctx.Query("creatorId"),
		Page:       page,
		Limit:      limit,
	})
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// parsePaginationParams reads page/limit; the service clamps them.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	page, limit := 1, services.DefaultPayoutPageSize
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil {
		page = p
	}
	if l, err := strconv.Atoi(ctx.Query("limit")); err == nil {
		limit = l
	}
	return page, limit
}
