package controllers

import (
	"net/http"

	"settlement-service/middleware"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
)

type EmailQueueController struct {
	queue services.EmailQueueService
}

func NewEmailQueueController(svc services.EmailQueueService) *EmailQueueController {
	return &EmailQueueController{queue: svc}
}

// RetryFailed handles POST /admin/email-queue/retry
func (ec *EmailQueueController) RetryFailed(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	n, svcErr := ec.queue.RetryFailed(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"requeued": n})
}
