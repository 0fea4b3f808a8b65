package identity

import (
	"context"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service manages patients and doctors.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*records.Patient, error) {
	p := &records.Patient{}
	if err := in.toRecord(p); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	uow.Patients.Add(p)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*records.Patient, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Patients.GetByID(ctx, id)
}

// SearchPatients pages patients whose name, email or phone contains q.
func (s *Service) SearchPatients(ctx context.Context, q string, p pagination.Params) ([]*records.Patient, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	page := persistence.Page{OrderBy: p.OrderOr("last_name", "first_name"), Limit: p.Limit, Offset: p.Offset}
	if q != "" {
		page.Filters = append(page.Filters, persistence.Or(
			persistence.Contains("first_name", q),
			persistence.Contains("last_name", q),
			persistence.Contains("email", q),
			persistence.Contains("phone", q),
		))
	}
	return uow.Patients.FindPage(ctx, page)
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, in PatientInput) (*records.Patient, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	p, err := uow.Patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.toRecord(p); err != nil {
		return nil, err
	}
	if err := uow.Patients.Update(p); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update patient %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Patients.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	return nil
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, in DoctorInput) (*records.Doctor, error) {
	d := &records.Doctor{}
	if err := in.toRecord(d); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := checkDoctor(ctx, uow, d, 0); err != nil {
		return nil, err
	}
	uow.Doctors.Add(d)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*records.Doctor, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, p pagination.Params) ([]*records.Doctor, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	return uow.Doctors.FindPage(ctx, persistence.Page{
		Filters: f.filters(),
		OrderBy: p.OrderOr("last_name", "first_name"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, in DoctorInput) (*records.Doctor, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	d, err := uow.Doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.toRecord(d); err != nil {
		return nil, err
	}
	if err := checkDoctor(ctx, uow, d, id); err != nil {
		return nil, err
	}
	if err := uow.Doctors.Update(d); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update doctor %d: %w", id, err)
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Doctors.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete doctor %d: %w", id, err)
	}
	return nil
}

// checkDoctor requires a live department and a license number no other
// doctor holds.
func checkDoctor(ctx context.Context, uow *records.UnitOfWork, d *records.Doctor, self int64) error {
	if _, err := uow.Departments.GetByID(ctx, d.DepartmentID); err != nil {
		return err
	}
	filters := []persistence.Filter{persistence.EqualFold("license_number", d.LicenseNumber)}
	if self != 0 {
		filters = append(filters, persistence.Ne("id", self))
	}
	taken, err := uow.Doctors.Any(ctx, filters...)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("license number %q is already registered: %w", d.LicenseNumber, persistence.ErrConflict)
	}
	return nil
}
