package payfast

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	sandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
	liveProcessURL    = "https://www.payfast.co.za/eng/process"
)

// MerchantConfig identifies the merchant account used for checkout links.
type MerchantConfig struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
	Sandbox     bool
}

// ProcessURL returns the hosted payment page for the configured environment.
func (c MerchantConfig) ProcessURL() string {
	if c.Sandbox {
		return sandboxProcessURL
	}
	return liveProcessURL
}

// CheckoutRequest describes one payment to collect.
type CheckoutRequest struct {
	PaymentID       uuid.UUID
	EntityID        uuid.UUID
	Amount          decimal.Decimal
	ItemName        string
	ItemDescription string
	Email           string
	FullName        string
}

// CheckoutURL builds a signed link to the hosted payment page. Fields are
// signed in the order the gateway documents for checkout requests.
func CheckoutURL(cfg MerchantConfig, req CheckoutRequest) string {
	first, last := splitName(req.FullName)
	params := []param{
		{"merchant_id", cfg.MerchantID},
		{"merchant_key", cfg.MerchantKey},
		{"return_url", cfg.ReturnURL},
		{"cancel_url", cfg.CancelURL},
		{"notify_url", cfg.NotifyURL},
		{"name_first", first},
		{"name_last", last},
		{"email_address", req.Email},
		{FieldMerchantPaymentID, req.PaymentID.String()},
		{"amount", req.Amount.StringFixed(2)},
		{FieldItemName, req.ItemName},
		{"item_description", req.ItemDescription},
		{FieldEntityID, req.EntityID.String()},
		{FieldPaymentID, req.PaymentID.String()},
	}

	query := encode(params, "")
	signature := digest(params, cfg.Passphrase)
	if query != "" {
		query += "&"
	}
	query += SignatureField + "=" + url.QueryEscape(signature)
	return cfg.ProcessURL() + "?" + query
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
