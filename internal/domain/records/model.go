// Package records defines the persisted clinical records, their table
// mappings and the unit of work that exposes a repository for each.
package records

import (
	"time"

	"github.com/ehr/hms/internal/platform/persistence"
)

type Department struct {
	persistence.Base
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Doctor struct {
	persistence.Base
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	DepartmentID   int64  `json:"departmentId"`
}

type Patient struct {
	persistence.Base
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	BloodGroup  string    `json:"bloodGroup"`
	Allergies   string    `json:"allergies"`
}

// Appointment statuses.
const (
	AppointmentScheduled = "Scheduled"
	AppointmentCompleted = "Completed"
	AppointmentCancelled = "Cancelled"
	AppointmentNoShow    = "NoShow"
)

// DefaultAppointmentMinutes is used when no duration is given.
const DefaultAppointmentMinutes = 30

type Appointment struct {
	persistence.Base
	PatientID       int64     `json:"patientId"`
	DoctorID        int64     `json:"doctorId"`
	AppointmentDate time.Time `json:"appointmentDate"`
	DurationMinutes int       `json:"durationMinutes"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
}

type MedicalRecord struct {
	persistence.Base
	PatientID int64     `json:"patientId"`
	DoctorID  int64     `json:"doctorId"`
	VisitDate time.Time `json:"visitDate"`
	Diagnosis string    `json:"diagnosis"`
	Symptoms  string    `json:"symptoms"`
	Treatment string    `json:"treatment"`
	Notes     string    `json:"notes"`
}

type Prescription struct {
	persistence.Base
	MedicalRecordID int64  `json:"medicalRecordId"`
	MedicationName  string `json:"medicationName"`
	Dosage          string `json:"dosage"`
	Frequency       string `json:"frequency"`
	DurationDays    int    `json:"durationDays"`
	Instructions    string `json:"instructions"`
}

// Payment statuses.
const (
	PaymentPending       = "Pending"
	PaymentPartiallyPaid = "PartiallyPaid"
	PaymentPaid          = "Paid"
	PaymentCancelled     = "Cancelled"
)

// Payment methods.
const (
	PaymentMethodCash      = "Cash"
	PaymentMethodCard      = "Card"
	PaymentMethodInsurance = "Insurance"
	PaymentMethodOnline    = "Online"
)

// Billing amounts are in minor currency units.
type Billing struct {
	persistence.Base
	PatientID         int64     `json:"patientId"`
	BillingDate       time.Time `json:"billingDate"`
	TotalAmount       int64     `json:"totalAmount"`
	PaidAmount        int64     `json:"paidAmount"`
	OutstandingAmount int64     `json:"outstandingAmount"`
	PaymentStatus     string    `json:"paymentStatus"`
	PaymentMethod     string    `json:"paymentMethod"`
	Description       string    `json:"description"`
	Notes             string    `json:"notes"`
}

// User roles.
const (
	RoleAdmin        = "Admin"
	RoleDoctor       = "Doctor"
	RoleReceptionist = "Receptionist"
	RolePatient      = "Patient"
)

type User struct {
	persistence.Base
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}
