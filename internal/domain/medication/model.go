package medication

import (
	"fmt"
	"strings"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

type PrescriptionInput struct {
	MedicalRecordID int64  `json:"medicalRecordId"`
	MedicationName  string `json:"medicationName"`
	Dosage          string `json:"dosage"`
	Frequency       string `json:"frequency"`
	DurationDays    int    `json:"durationDays"`
	Instructions    string `json:"instructions"`
}

// Apply validates in and copies it onto p. The medical record is checked
// by the caller.
func (in *PrescriptionInput) Apply(p *records.Prescription) error {
	if strings.TrimSpace(in.MedicationName) == "" {
		return fmt.Errorf("%w: medicationName is required", persistence.ErrInvalid)
	}
	if in.DurationDays < 0 {
		return fmt.Errorf("%w: durationDays must not be negative", persistence.ErrInvalid)
	}
	p.MedicalRecordID = in.MedicalRecordID
	p.MedicationName = strings.TrimSpace(in.MedicationName)
	p.Dosage = strings.TrimSpace(in.Dosage)
	p.Frequency = strings.TrimSpace(in.Frequency)
	p.DurationDays = in.DurationDays
	p.Instructions = in.Instructions
	return nil
}
