package services

import (
	"github.com/shopspring/decimal"
)

// Gateway fee schedule: a percentage of each transaction plus a fixed amount.
var (
	GatewayFeeRate  = decimal.RequireFromString("0.029")
	GatewayFixedFee = decimal.NewFromInt(3)
)

// PayoutBreakdown is the result of a payout calculation.
type PayoutBreakdown struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	TotalTransactions int             `json:"total_transactions"`
}

// TransactionFee is the gateway fee for one payment, rounded to cents.
func TransactionFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(GatewayFeeRate).Add(GatewayFixedFee).Round(2)
}

// CalculatePayout rounds each fee before summing, so the net amount matches
// what the gateway actually deducted per transaction.
func CalculatePayout(amounts []decimal.Decimal) PayoutBreakdown {
	revenue := decimal.Zero
	fees := decimal.Zero
	for _, a := range amounts {
		revenue = revenue.Add(a)
		fees = fees.Add(TransactionFee(a))
	}
	return PayoutBreakdown{
		TotalRevenue:      revenue,
		TotalFees:         fees,
		NetAmount:         revenue.Sub(fees),
		TotalTransactions: len(amounts),
	}
}
