package payfast

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment statuses reported in callbacks.
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusPending   = "PENDING"
)

// Callback field names.
const (
	FieldPaymentStatus     = "payment_status"
	FieldAmountGross       = "amount_gross"
	FieldGatewayPaymentID  = "pf_payment_id"
	FieldMerchantPaymentID = "m_payment_id"
	FieldItemName          = "item_name"
	FieldEntityID          = "custom_str1"
	FieldPaymentID         = "custom_str2"
)

var requiredFields = []string{
	FieldPaymentStatus,
	FieldAmountGross,
	FieldGatewayPaymentID,
	FieldEntityID,
	FieldPaymentID,
}

// Notification is a parsed instant transaction notification.
type Notification struct {
	PaymentStatus     string
	AmountGross       decimal.Decimal
	GatewayPaymentID  string
	MerchantPaymentID string
	ItemName          string
	EntityID          uuid.UUID
	PaymentID         uuid.UUID
	Fields            map[string]string
}

// MissingFieldsError lists required callback fields that were absent or empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// InvalidFieldError reports a field that is present but malformed.
type InvalidFieldError struct {
	Field string
	Err   error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InvalidFieldError) Unwrap() error { return e.Err }

// FormFields flattens a parsed form body, keeping the first value of each key.
func FormFields(values url.Values) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

// ParseNotification validates and converts raw callback fields. It does not
// check the signature.
func ParseNotification(fields map[string]string) (*Notification, error) {
	var missing []string
	for _, f := range requiredFields {
		if strings.TrimSpace(fields[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(fields[FieldAmountGross]))
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldAmountGross, Err: err}
	}
	entityID, err := uuid.Parse(strings.TrimSpace(fields[FieldEntityID]))
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldEntityID, Err: err}
	}
	paymentID, err := uuid.Parse(strings.TrimSpace(fields[FieldPaymentID]))
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldPaymentID, Err: err}
	}

	return &Notification{
		PaymentStatus:     strings.ToUpper(strings.TrimSpace(fields[FieldPaymentStatus])),
		AmountGross:       amount,
		GatewayPaymentID:  strings.TrimSpace(fields[FieldGatewayPaymentID]),
		MerchantPaymentID: fields[FieldMerchantPaymentID],
		ItemName:          fields[FieldItemName],
		EntityID:          entityID,
		PaymentID:         paymentID,
		Fields:            fields,
	}, nil
}
