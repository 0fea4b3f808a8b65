package clinical

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/hms/internal/domain/medication"
	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

// MedicalRecordInput describes one visit. Prescriptions are only read on
// create and are written together with the record.
type MedicalRecordInput struct {
	PatientID     int64                          `json:"patientId"`
	DoctorID      int64                          `json:"doctorId"`
	VisitDate     string                         `json:"visitDate"`
	Diagnosis     string                         `json:"diagnosis"`
	Symptoms      string                         `json:"symptoms"`
	Treatment     string                         `json:"treatment"`
	Notes         string                         `json:"notes"`
	Prescriptions []medication.PrescriptionInput `json:"prescriptions,omitempty"`
}

func (in *MedicalRecordInput) toRecord(mr *records.MedicalRecord) error {
	if in.PatientID <= 0 {
		return fmt.Errorf("%w: patientId is required", persistence.ErrInvalid)
	}
	if in.DoctorID <= 0 {
		return fmt.Errorf("%w: doctorId is required", persistence.ErrInvalid)
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return fmt.Errorf("%w: diagnosis is required", persistence.ErrInvalid)
	}
	visit := mr.VisitDate
	if visit.IsZero() {
		visit = persistence.Now().Truncate(time.Second)
	}
	if in.VisitDate != "" {
		t, err := records.ParseTime("visitDate", in.VisitDate)
		if err != nil {
			return err
		}
		visit = t
	}
	mr.PatientID = in.PatientID
	mr.DoctorID = in.DoctorID
	mr.VisitDate = visit
	mr.Diagnosis = strings.TrimSpace(in.Diagnosis)
	mr.Symptoms = in.Symptoms
	mr.Treatment = in.Treatment
	mr.Notes = in.Notes
	return nil
}

// MedicalRecordDetail is a medical record with its live prescriptions.
type MedicalRecordDetail struct {
	*records.MedicalRecord
	Prescriptions []*records.Prescription `json:"prescriptions"`
}

// Filter narrows a medical record listing. Query matches diagnosis,
// symptoms and the patient's name.
type Filter struct {
	PatientID int64
	DoctorID  int64
	Query     string
}

func (f Filter) filters() []persistence.Filter {
	var out []persistence.Filter
	if f.PatientID != 0 {
		out = append(out, persistence.Eq("patient_id", f.PatientID))
	}
	if f.DoctorID != 0 {
		out = append(out, persistence.Eq("doctor_id", f.DoctorID))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := persistence.ContainsPattern(q)
		out = append(out, persistence.Or(
			persistence.Contains("diagnosis", q),
			persistence.Contains("symptoms", q),
			persistence.Where("patient_id IN (SELECT id FROM patients WHERE is_deleted = FALSE AND (LOWER(first_name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\'))", like, like),
		))
	}
	return out
}
