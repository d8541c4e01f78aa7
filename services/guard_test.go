package services_test

import (
	"testing"

	"settlement-service/models"
	"settlement-service/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheckPayment(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		amount   string
		received string
		want     services.GuardDecision
	}{
		{"exact amount", models.PaymentStatusPending, "1000.00", "1000.00", services.GuardProceed},
		{"within tolerance below", models.PaymentStatusPending, "1000.00", "999.00", services.GuardProceed},
		{"within tolerance above", models.PaymentStatusPending, "1000.00", "1000.99", services.GuardProceed},
		{"just outside tolerance", models.PaymentStatusPending, "1000.00", "998.99", services.GuardAmountMismatch},
		{"far outside tolerance", models.PaymentStatusPending, "1000.00", "1.00", services.GuardAmountMismatch},
		{"paid wins over mismatch", models.PaymentStatusPaid, "1000.00", "5.00", services.GuardAlreadyProcessed},
		{"failed is terminal", models.PaymentStatusFailed, "1000.00", "1000.00", services.GuardAlreadyProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Payment{Status: tt.status, Amount: decimal.RequireFromString(tt.amount)}
			got := services.CheckPayment(p, decimal.RequireFromString(tt.received))
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestAmountGuard_CustomTolerance(t *testing.T) {
	guard := services.AmountGuard{Tolerance: decimal.RequireFromString("0.01")}
	p := &models.Payment{Status: models.PaymentStatusPending, Amount: decimal.RequireFromString("250.00")}

	assert.Equal(t, services.GuardProceed, guard.Check(p, decimal.RequireFromString("250.01")))
	assert.Equal(t, services.GuardAmountMismatch, guard.Check(p, decimal.RequireFromString("249.50")))
}

func TestGuardDecision_String(t *testing.T) {
	assert.Equal(t, "proceed", services.GuardProceed.String())
	assert.Equal(t, "already_processed", services.GuardAlreadyProcessed.String())
	assert.Equal(t, "amount_mismatch", services.GuardAmountMismatch.String())
	assert.Equal(t, "unknown", services.GuardDecision(42).String())
}
