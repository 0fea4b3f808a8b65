package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

var validStatuses = map[string]bool{
	records.PaymentPending:       true,
	records.PaymentPartiallyPaid: true,
	records.PaymentPaid:          true,
	records.PaymentCancelled:     true,
}

var validMethods = map[string]bool{
	records.PaymentMethodCash:      true,
	records.PaymentMethodCard:      true,
	records.PaymentMethodInsurance: true,
	records.PaymentMethodOnline:    true,
}

// paymentMethod trims m and rejects unknown methods. Empty means unset.
func paymentMethod(m string) (string, error) {
	m = strings.TrimSpace(m)
	if m != "" && !validMethods[m] {
		return "", fmt.Errorf("%w: unknown payment method %q", persistence.ErrInvalid, m)
	}
	return m, nil
}

// BillingInput creates a bill. Amounts are in minor currency units.
type BillingInput struct {
	PatientID     int64  `json:"patientId"`
	BillingDate   string `json:"billingDate"`
	TotalAmount   int64  `json:"totalAmount"`
	PaidAmount    int64  `json:"paidAmount"`
	PaymentMethod string `json:"paymentMethod"`
	Description   string `json:"description"`
	Notes         string `json:"notes"`
}

func (in *BillingInput) toRecord(b *records.Billing) error {
	if in.PatientID <= 0 {
		return fmt.Errorf("%w: patientId is required", persistence.ErrInvalid)
	}
	if in.TotalAmount <= 0 {
		return fmt.Errorf("%w: totalAmount must be positive", persistence.ErrInvalid)
	}
	if in.PaidAmount < 0 {
		return fmt.Errorf("%w: paidAmount must not be negative", persistence.ErrInvalid)
	}
	method, err := paymentMethod(in.PaymentMethod)
	if err != nil {
		return err
	}
	b.BillingDate = persistence.Now().Truncate(time.Second)
	if in.BillingDate != "" {
		at, err := records.ParseTime("billingDate", in.BillingDate)
		if err != nil {
			return err
		}
		b.BillingDate = at
	}
	b.PatientID = in.PatientID
	b.TotalAmount = in.TotalAmount
	b.PaidAmount = in.PaidAmount
	b.PaymentMethod = method
	b.Description = in.Description
	b.Notes = in.Notes
	b.PaymentStatus, b.OutstandingAmount = derivePaymentStatus(b.TotalAmount, b.PaidAmount, "")
	return nil
}

// BillingUpdate changes a bill. Nil fields are left alone. PaymentStatus
// only matters for cancelling or reopening: every other status is derived
// from the amounts.
type BillingUpdate struct {
	PaidAmount    *int64  `json:"paidAmount"`
	PaymentStatus *string `json:"paymentStatus"`
	PaymentMethod *string `json:"paymentMethod"`
	Description   *string `json:"description"`
	Notes         *string `json:"notes"`
}

func (u *BillingUpdate) applyTo(b *records.Billing) error {
	if u.PaidAmount != nil && *u.PaidAmount < 0 {
		return fmt.Errorf("%w: paidAmount must not be negative", persistence.ErrInvalid)
	}
	if u.PaymentStatus != nil && !validStatuses[*u.PaymentStatus] {
		return fmt.Errorf("%w: unknown payment status %q", persistence.ErrInvalid, *u.PaymentStatus)
	}
	var method string
	if u.PaymentMethod != nil {
		m, err := paymentMethod(*u.PaymentMethod)
		if err != nil {
			return err
		}
		method = m
	}

	if u.PaidAmount != nil {
		b.PaidAmount = *u.PaidAmount
	}
	if u.PaymentMethod != nil {
		b.PaymentMethod = method
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.Notes != nil {
		b.Notes = *u.Notes
	}

	current := b.PaymentStatus
	if u.PaymentStatus != nil {
		current = ""
		if *u.PaymentStatus == records.PaymentCancelled {
			current = records.PaymentCancelled
		}
	}
	b.PaymentStatus, b.OutstandingAmount = derivePaymentStatus(b.TotalAmount, b.PaidAmount, current)
	return nil
}

type PaymentInput struct {
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// Filter narrows bill listings. Zero fields are ignored.
type Filter struct {
	PatientID int64
	Status    string
}

func (f Filter) filters() []persistence.Filter {
	var out []persistence.Filter
	if f.PatientID != 0 {
		out = append(out, persistence.Eq("patient_id", f.PatientID))
	}
	if f.Status != "" {
		out = append(out, persistence.Eq("payment_status", f.Status))
	}
	return out
}

// derivePaymentStatus returns the status and outstanding amount implied by
// total and paid. A cancelled bill stays cancelled.
func derivePaymentStatus(total, paid int64, current string) (string, int64) {
	switch {
	case current == records.PaymentCancelled:
		return records.PaymentCancelled, max(total-paid, 0)
	case paid >= total:
		return records.PaymentPaid, 0
	case paid > 0:
		return records.PaymentPartiallyPaid, total - paid
	default:
		return records.PaymentPending, total
	}
}
