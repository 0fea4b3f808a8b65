package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service manages medical records and the prescriptions written on them.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

// CreateMedicalRecord stores the record. When prescriptions are given they
// are written in the same transaction, so either all rows land or none do.
func (s *Service) CreateMedicalRecord(ctx context.Context, in MedicalRecordInput) (*MedicalRecordDetail, error) {
	mr := &records.MedicalRecord{}
	if err := in.toRecord(mr); err != nil {
		return nil, err
	}
	rx := make([]*records.Prescription, len(in.Prescriptions))
	for i := range in.Prescriptions {
		rx[i] = &records.Prescription{}
		if err := in.Prescriptions[i].Apply(rx[i]); err != nil {
			return nil, fmt.Errorf("prescription %d: %w", i, err)
		}
	}

	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := checkParticipants(ctx, uow, mr); err != nil {
		return nil, err
	}

	uow.MedicalRecords.Add(mr)
	if len(rx) == 0 {
		if _, err := uow.Complete(ctx); err != nil {
			return nil, fmt.Errorf("create medical record: %w", err)
		}
		return &MedicalRecordDetail{MedicalRecord: mr, Prescriptions: rx}, nil
	}

	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("create medical record: %w", err), uow.RollbackTransaction(ctx))
	}
	for _, p := range rx {
		p.MedicalRecordID = mr.ID
		uow.Prescriptions.Add(p)
	}
	if err := uow.CommitTransaction(ctx); err != nil {
		return nil, fmt.Errorf("create medical record prescriptions: %w", err)
	}
	return &MedicalRecordDetail{MedicalRecord: mr, Prescriptions: rx}, nil
}

// GetMedicalRecord returns the record with its live prescriptions.
func (s *Service) GetMedicalRecord(ctx context.Context, id int64) (*MedicalRecordDetail, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	mr, err := uow.MedicalRecords.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rx, err := uow.Prescriptions.FindOrdered(ctx, []string{"id"}, persistence.Eq("medical_record_id", id))
	if err != nil {
		return nil, err
	}
	return &MedicalRecordDetail{MedicalRecord: mr, Prescriptions: rx}, nil
}

// ListMedicalRecords pages records, most recent visit first by default.
func (s *Service) ListMedicalRecords(ctx context.Context, f Filter, p pagination.Params) ([]*records.MedicalRecord, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	return uow.MedicalRecords.FindPage(ctx, persistence.Page{
		Filters: f.filters(),
		OrderBy: p.OrderOr("visit_date desc", "id desc"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
}

// UpdateMedicalRecord replaces the record's fields. Prescriptions in the
// input are ignored; they are managed on their own endpoints.
func (s *Service) UpdateMedicalRecord(ctx context.Context, id int64, in MedicalRecordInput) (*records.MedicalRecord, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	mr, err := uow.MedicalRecords.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patient, doctor := mr.PatientID, mr.DoctorID
	if err := in.toRecord(mr); err != nil {
		return nil, err
	}
	if mr.PatientID != patient || mr.DoctorID != doctor {
		if err := checkParticipants(ctx, uow, mr); err != nil {
			return nil, err
		}
	}
	if err := uow.MedicalRecords.Update(mr); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update medical record %d: %w", id, err)
	}
	return mr, nil
}

// DeleteMedicalRecord soft-deletes the record and its live prescriptions
// in one unit of work.
func (s *Service) DeleteMedicalRecord(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.MedicalRecords.SoftDelete(ctx, id); err != nil {
		return err
	}
	rx, err := uow.Prescriptions.Find(ctx, persistence.Eq("medical_record_id", id))
	if err != nil {
		return err
	}
	for _, p := range rx {
		if err := uow.Prescriptions.SoftDelete(ctx, p.ID); err != nil {
			return err
		}
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete medical record %d: %w", id, err)
	}
	return nil
}

func checkParticipants(ctx context.Context, uow *records.UnitOfWork, mr *records.MedicalRecord) error {
	if _, err := uow.Patients.GetByID(ctx, mr.PatientID); err != nil {
		return err
	}
	if _, err := uow.Doctors.GetByID(ctx, mr.DoctorID); err != nil {
		return err
	}
	return nil
}
