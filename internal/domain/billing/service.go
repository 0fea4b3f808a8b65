package billing

import (
	"context"
	"fmt"
	"math"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service issues bills and records payments against them.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

func (s *Service) CreateBilling(ctx context.Context, in BillingInput) (*records.Billing, error) {
	b := &records.Billing{}
	if err := in.toRecord(b); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if _, err := uow.Patients.GetByID(ctx, b.PatientID); err != nil {
		return nil, err
	}
	uow.Billings.Add(b)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create billing: %w", err)
	}
	return b, nil
}

func (s *Service) GetBilling(ctx context.Context, id int64) (*records.Billing, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Billings.GetByID(ctx, id)
}

// ListBillings pages bills, latest first.
func (s *Service) ListBillings(ctx context.Context, f Filter, p pagination.Params) ([]*records.Billing, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("%w: unknown payment status %q", persistence.ErrInvalid, f.Status)
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	return uow.Billings.FindPage(ctx, persistence.Page{
		Filters: f.filters(),
		OrderBy: p.OrderOr("billing_date desc", "id desc"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
}

// UpdateBilling applies upd and re-derives the payment status and the
// outstanding amount.
func (s *Service) UpdateBilling(ctx context.Context, id int64, upd BillingUpdate) (*records.Billing, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	b, err := uow.Billings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := upd.applyTo(b); err != nil {
		return nil, err
	}
	if err := uow.Billings.Update(b); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update billing %d: %w", id, err)
	}
	return b, nil
}

// ProcessPayment adds amount to the bill's paid amount. Settled and
// cancelled bills accept no payments.
func (s *Service) ProcessPayment(ctx context.Context, id int64, in PaymentInput) (*records.Billing, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", persistence.ErrInvalid)
	}
	method, err := paymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	b, err := uow.Billings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.PaymentStatus {
	case records.PaymentPaid, records.PaymentCancelled:
		return nil, fmt.Errorf("billing %d is %s: %w", id, b.PaymentStatus, persistence.ErrConflict)
	}

	if in.Amount > math.MaxInt64-b.PaidAmount {
		return nil, fmt.Errorf("%w: payment amount too large", persistence.ErrInvalid)
	}
	b.PaidAmount += in.Amount
	if method != "" {
		b.PaymentMethod = method
	}
	b.PaymentStatus, b.OutstandingAmount = derivePaymentStatus(b.TotalAmount, b.PaidAmount, b.PaymentStatus)
	if err := uow.Billings.Update(b); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("process payment for billing %d: %w", id, err)
	}
	return b, nil
}

func (s *Service) DeleteBilling(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Billings.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete billing %d: %w", id, err)
	}
	return nil
}
