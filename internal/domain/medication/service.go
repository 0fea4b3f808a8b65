package medication

import (
	"context"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service manages prescriptions written against medical records.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

func (s *Service) CreatePrescription(ctx context.Context, in PrescriptionInput) (*records.Prescription, error) {
	p := &records.Prescription{}
	if err := in.Apply(p); err != nil {
		return nil, err
	}
	if p.MedicalRecordID <= 0 {
		return nil, fmt.Errorf("%w: medicalRecordId is required", persistence.ErrInvalid)
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if _, err := uow.MedicalRecords.GetByID(ctx, p.MedicalRecordID); err != nil {
		return nil, err
	}
	uow.Prescriptions.Add(p)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id int64) (*records.Prescription, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Prescriptions.GetByID(ctx, id)
}

// ListPrescriptions pages prescriptions, optionally for one medical record.
func (s *Service) ListPrescriptions(ctx context.Context, medicalRecordID int64, p pagination.Params) ([]*records.Prescription, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	page := persistence.Page{OrderBy: p.OrderOr("id"), Limit: p.Limit, Offset: p.Offset}
	if medicalRecordID != 0 {
		page.Filters = append(page.Filters, persistence.Eq("medical_record_id", medicalRecordID))
	}
	return uow.Prescriptions.FindPage(ctx, page)
}

// UpdatePrescription replaces the prescription's details. It stays on its
// medical record.
func (s *Service) UpdatePrescription(ctx context.Context, id int64, in PrescriptionInput) (*records.Prescription, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	p, err := uow.Prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.MedicalRecordID = p.MedicalRecordID
	if err := in.Apply(p); err != nil {
		return nil, err
	}
	if err := uow.Prescriptions.Update(p); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update prescription %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) DeletePrescription(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Prescriptions.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete prescription %d: %w", id, err)
	}
	return nil
}
