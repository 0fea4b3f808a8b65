package scheduling

import (
	"fmt"
	"time"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

var validStatuses = map[string]bool{
	records.AppointmentScheduled: true,
	records.AppointmentCompleted: true,
	records.AppointmentCancelled: true,
	records.AppointmentNoShow:    true,
}

type AppointmentInput struct {
	PatientID       int64  `json:"patientId"`
	DoctorID        int64  `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

// toRecord validates in and copies it onto a. An empty status keeps the
// current one, or Scheduled for a new appointment.
func (in *AppointmentInput) toRecord(a *records.Appointment) error {
	if in.PatientID <= 0 || in.DoctorID <= 0 {
		return fmt.Errorf("%w: patientId and doctorId are required", persistence.ErrInvalid)
	}
	at, err := records.ParseTime("appointmentDate", in.AppointmentDate)
	if err != nil {
		return err
	}
	if in.DurationMinutes < 0 {
		return fmt.Errorf("%w: durationMinutes must be positive", persistence.ErrInvalid)
	}
	if in.Status != "" && !validStatuses[in.Status] {
		return fmt.Errorf("%w: unknown status %q", persistence.ErrInvalid, in.Status)
	}

	a.PatientID = in.PatientID
	a.DoctorID = in.DoctorID
	a.AppointmentDate = at
	switch {
	case in.DurationMinutes > 0:
		a.DurationMinutes = in.DurationMinutes
	case a.DurationMinutes == 0:
		a.DurationMinutes = records.DefaultAppointmentMinutes
	}
	switch {
	case in.Status != "":
		a.Status = in.Status
	case a.Status == "":
		a.Status = records.AppointmentScheduled
	}
	a.Reason = in.Reason
	a.Notes = in.Notes
	return nil
}

// Filter narrows appointment listings. Zero fields are ignored; From and To
// bound the appointment date inclusively.
type Filter struct {
	PatientID int64
	DoctorID  int64
	Status    string
	From      time.Time
	To        time.Time
}

func (f Filter) ranged() bool { return !f.From.IsZero() || !f.To.IsZero() }

func (f Filter) filters() []persistence.Filter {
	var out []persistence.Filter
	if f.PatientID != 0 {
		out = append(out, persistence.Eq("patient_id", f.PatientID))
	}
	if f.DoctorID != 0 {
		out = append(out, persistence.Eq("doctor_id", f.DoctorID))
	}
	if f.Status != "" {
		out = append(out, persistence.Eq("status", f.Status))
	}
	if !f.From.IsZero() {
		out = append(out, persistence.Gte("appointment_date", f.From))
	}
	if !f.To.IsZero() {
		out = append(out, persistence.Lte("appointment_date", f.To))
	}
	return out
}
