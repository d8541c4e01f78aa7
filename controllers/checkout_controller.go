package controllers

import (
	"net/http"

	"settlement-service/middleware"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
)

// CheckoutController issues PayFast checkout links.
type CheckoutController struct {
	checkout services.CheckoutService
}

func NewCheckoutController(svc services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkout: svc}
}

// CreateCheckout handles POST /payments/checkout
func (cc *CheckoutController) CreateCheckout(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, svcErr := cc.checkout.CreateCheckout(ctx.Request.Context(), userID, req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, result)
}
