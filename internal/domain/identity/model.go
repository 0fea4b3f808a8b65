package identity

import (
	"fmt"
	"strings"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

var validGenders = map[string]bool{
	"": true, "Male": true, "Female": true, "Other": true,
}

var validBloodGroups = map[string]bool{
	"": true, "A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

type PatientInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	BloodGroup  string `json:"bloodGroup"`
	Allergies   string `json:"allergies"`
}

// toRecord validates in and copies it onto p.
func (in *PatientInput) toRecord(p *records.Patient) error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", persistence.ErrInvalid)
	}
	dob, err := records.ParseDate("dateOfBirth", in.DateOfBirth)
	if err != nil {
		return err
	}
	if dob.After(persistence.Now()) {
		return fmt.Errorf("%w: dateOfBirth is in the future", persistence.ErrInvalid)
	}
	if !validGenders[in.Gender] {
		return fmt.Errorf("%w: unknown gender %q", persistence.ErrInvalid, in.Gender)
	}
	if !validBloodGroups[in.BloodGroup] {
		return fmt.Errorf("%w: unknown blood group %q", persistence.ErrInvalid, in.BloodGroup)
	}

	p.FirstName = strings.TrimSpace(in.FirstName)
	p.LastName = strings.TrimSpace(in.LastName)
	p.DateOfBirth = dob
	p.Gender = in.Gender
	p.Phone = strings.TrimSpace(in.Phone)
	p.Email = strings.TrimSpace(in.Email)
	p.Address = in.Address
	p.BloodGroup = in.BloodGroup
	p.Allergies = in.Allergies
	return nil
}

type DoctorInput struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	DepartmentID   int64  `json:"departmentId"`
}

func (in *DoctorInput) toRecord(d *records.Doctor) error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", persistence.ErrInvalid)
	}
	if strings.TrimSpace(in.LicenseNumber) == "" {
		return fmt.Errorf("%w: licenseNumber is required", persistence.ErrInvalid)
	}
	if in.DepartmentID <= 0 {
		return fmt.Errorf("%w: departmentId is required", persistence.ErrInvalid)
	}

	d.FirstName = strings.TrimSpace(in.FirstName)
	d.LastName = strings.TrimSpace(in.LastName)
	d.Specialization = strings.TrimSpace(in.Specialization)
	d.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	d.Phone = strings.TrimSpace(in.Phone)
	d.Email = strings.TrimSpace(in.Email)
	d.DepartmentID = in.DepartmentID
	return nil
}

// DoctorFilter narrows doctor listings. Zero fields are ignored.
type DoctorFilter struct {
	Query        string
	DepartmentID int64
}

func (f DoctorFilter) filters() []persistence.Filter {
	var out []persistence.Filter
	if f.Query != "" {
		out = append(out, persistence.Or(
			persistence.Contains("first_name", f.Query),
			persistence.Contains("last_name", f.Query),
			persistence.Contains("specialization", f.Query),
			persistence.Contains("license_number", f.Query),
		))
	}
	if f.DepartmentID != 0 {
		out = append(out, persistence.Eq("department_id", f.DepartmentID))
	}
	return out
}
