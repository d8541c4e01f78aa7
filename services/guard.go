package services

import (
	"settlement-service/models"

	"github.com/shopspring/decimal"
)

// GuardDecision is the outcome of checking a callback against its payment record.
type GuardDecision int

const (
	// GuardProceed means the payment is pending and the amount matches.
	GuardProceed GuardDecision = iota
	// GuardAlreadyProcessed means the payment reached a terminal status earlier.
	GuardAlreadyProcessed
	// GuardAmountMismatch means the reported amount is outside the tolerance.
	GuardAmountMismatch
)

func (d GuardDecision) String() string {
	switch d {
	case GuardProceed:
		return "proceed"
	case GuardAlreadyProcessed:
		return "already_processed"
	case GuardAmountMismatch:
		return "amount_mismatch"
	}
	return "unknown"
}

// DefaultAmountTolerance is the largest accepted difference between the
// expected and the received amount, in currency units.
var DefaultAmountTolerance = decimal.NewFromInt(1)

// AmountGuard combines the idempotency check with amount reconciliation.
type AmountGuard struct {
	Tolerance decimal.Decimal
}

// Check is pure: it never touches storage. Terminal records win over the
// amount check so a duplicate callback with a different amount is still a no-op.
func (g AmountGuard) Check(p *models.Payment, received decimal.Decimal) GuardDecision {
	if p.IsTerminal() {
		return GuardAlreadyProcessed
	}
	if received.Sub(p.Amount).Abs().GreaterThan(g.Tolerance) {
		return GuardAmountMismatch
	}
	return GuardProceed
}

// CheckPayment applies the default tolerance.
func CheckPayment(p *models.Payment, received decimal.Decimal) GuardDecision {
	return AmountGuard{Tolerance: DefaultAmountTolerance}.Check(p, received)
}
