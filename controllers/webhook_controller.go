package controllers

import (
	"net/http"

	"settlement-service/payfast"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookController receives PayFast instant transaction notifications.
type WebhookController struct {
	settlement services.SettlementService
	logger     *zap.Logger
}

func NewWebhookController(svc services.SettlementService, logger *zap.Logger) *WebhookController {
	return &WebhookController{settlement: svc, logger: logger}
}

// PayFastNotify handles ANY /webhooks/payfast. Only POST is accepted.
func (wc *WebhookController) PayFastNotify(ctx *gin.Context) {
	if ctx.Request.Method != http.MethodPost {
		ctx.Header("Allow", http.MethodPost)
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}
	if err := ctx.Request.ParseForm(); err != nil {
		wc.logger.Warn("Unreadable payment callback body", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form body"})
		return
	}

	result, svcErr := wc.settlement.ProcessNotification(ctx.Request.Context(), payfast.FormFields(ctx.Request.PostForm))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "result": result.Result})
}
