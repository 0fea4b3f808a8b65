package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service books and manages appointments.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

// CreateAppointment books an appointment for a live patient and doctor. A
// doctor cannot hold two non-cancelled appointments at the same instant.
func (s *Service) CreateAppointment(ctx context.Context, in AppointmentInput) (*records.Appointment, error) {
	a := &records.Appointment{}
	if err := in.toRecord(a); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := checkParticipants(ctx, uow, a); err != nil {
		return nil, err
	}
	if a.Status != records.AppointmentCancelled {
		if err := checkSlot(ctx, uow, a.DoctorID, a.AppointmentDate, 0); err != nil {
			return nil, err
		}
	}
	uow.Appointments.Add(a)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*records.Appointment, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Appointments.GetByID(ctx, id)
}

// ListAppointments pages appointments, latest first. Date-ranged listings
// run earliest first.
func (s *Service) ListAppointments(ctx context.Context, f Filter, p pagination.Params) ([]*records.Appointment, int, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, fmt.Errorf("%w: to is before from", persistence.ErrInvalid)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("%w: unknown status %q", persistence.ErrInvalid, f.Status)
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	order := []string{"appointment_date desc", "id desc"}
	if f.ranged() {
		order = []string{"appointment_date asc", "id asc"}
	}
	return uow.Appointments.FindPage(ctx, persistence.Page{
		Filters: f.filters(),
		OrderBy: p.OrderOr(order...),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
}

// UpdateAppointment replaces the appointment's details. The slot check is
// repeated when the doctor or time changes, or a cancelled appointment is
// reinstated.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, in AppointmentInput) (*records.Appointment, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	a, err := uow.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prevDoctor, prevDate, prevStatus := a.DoctorID, a.AppointmentDate, a.Status
	if err := in.toRecord(a); err != nil {
		return nil, err
	}
	if err := checkParticipants(ctx, uow, a); err != nil {
		return nil, err
	}
	moved := a.DoctorID != prevDoctor || !a.AppointmentDate.Equal(prevDate) || prevStatus == records.AppointmentCancelled
	if moved && a.Status != records.AppointmentCancelled {
		if err := checkSlot(ctx, uow, a.DoctorID, a.AppointmentDate, id); err != nil {
			return nil, err
		}
	}
	if err := uow.Appointments.Update(a); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, err)
	}
	return a, nil
}

// CancelAppointment marks the appointment cancelled, freeing its slot.
// Completed appointments cannot be cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (*records.Appointment, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	a, err := uow.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == records.AppointmentCompleted {
		return nil, fmt.Errorf("appointment %d is completed: %w", id, persistence.ErrConflict)
	}
	a.Status = records.AppointmentCancelled
	if err := uow.Appointments.Update(a); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("cancel appointment %d: %w", id, err)
	}
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Appointments.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	return nil
}

func checkParticipants(ctx context.Context, uow *records.UnitOfWork, a *records.Appointment) error {
	if _, err := uow.Patients.GetByID(ctx, a.PatientID); err != nil {
		return err
	}
	if _, err := uow.Doctors.GetByID(ctx, a.DoctorID); err != nil {
		return err
	}
	return nil
}

// checkSlot rejects the booking when another non-cancelled appointment
// holds the doctor at exactly at. Concurrent bookings may both pass; no
// storage constraint backs the rule.
func checkSlot(ctx context.Context, uow *records.UnitOfWork, doctorID int64, at time.Time, self int64) error {
	filters := []persistence.Filter{
		persistence.Eq("doctor_id", doctorID),
		persistence.Eq("appointment_date", at),
		persistence.Ne("status", records.AppointmentCancelled),
	}
	if self != 0 {
		filters = append(filters, persistence.Ne("id", self))
	}
	taken, err := uow.Appointments.Any(ctx, filters...)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("doctor %d already has an appointment at %s: %w", doctorID, at.Format(time.RFC3339), persistence.ErrConflict)
	}
	return nil
}
