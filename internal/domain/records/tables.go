package records

import (
	"time"

	"github.com/ehr/hms/internal/platform/persistence"
)

var DepartmentTable = persistence.NewTable[Department]("departments", "Department",
	persistence.Field("name", "name", func(d *Department) *string { return &d.Name }),
	persistence.Field("description", "description", func(d *Department) *string { return &d.Description }),
)

var DoctorTable = persistence.NewTable[Doctor]("doctors", "Doctor",
	persistence.Field("first_name", "firstName", func(d *Doctor) *string { return &d.FirstName }),
	persistence.Field("last_name", "lastName", func(d *Doctor) *string { return &d.LastName }),
	persistence.Field("specialization", "specialization", func(d *Doctor) *string { return &d.Specialization }),
	persistence.Field("license_number", "licenseNumber", func(d *Doctor) *string { return &d.LicenseNumber }),
	persistence.Field("phone", "phone", func(d *Doctor) *string { return &d.Phone }),
	persistence.Field("email", "email", func(d *Doctor) *string { return &d.Email }),
	persistence.Field("department_id", "departmentId", func(d *Doctor) *int64 { return &d.DepartmentID }),
)

var PatientTable = persistence.NewTable[Patient]("patients", "Patient",
	persistence.Field("first_name", "firstName", func(r *Patient) *string { return &r.FirstName }),
	persistence.Field("last_name", "lastName", func(r *Patient) *string { return &r.LastName }),
	persistence.Field("date_of_birth", "dateOfBirth", func(r *Patient) *time.Time { return &r.DateOfBirth }),
	persistence.Field("gender", "gender", func(r *Patient) *string { return &r.Gender }),
	persistence.Field("phone", "phone", func(r *Patient) *string { return &r.Phone }),
	persistence.Field("email", "email", func(r *Patient) *string { return &r.Email }),
	persistence.Field("address", "address", func(r *Patient) *string { return &r.Address }),
	persistence.Field("blood_group", "bloodGroup", func(r *Patient) *string { return &r.BloodGroup }),
	persistence.Field("allergies", "allergies", func(r *Patient) *string { return &r.Allergies }),
)

var AppointmentTable = persistence.NewTable[Appointment]("appointments", "Appointment",
	persistence.Field("patient_id", "patientId", func(a *Appointment) *int64 { return &a.PatientID }),
	persistence.Field("doctor_id", "doctorId", func(a *Appointment) *int64 { return &a.DoctorID }),
	persistence.Field("appointment_date", "appointmentDate", func(a *Appointment) *time.Time { return &a.AppointmentDate }),
	persistence.Field("duration_minutes", "durationMinutes", func(a *Appointment) *int { return &a.DurationMinutes }),
	persistence.Field("status", "status", func(a *Appointment) *string { return &a.Status }),
	persistence.Field("reason", "reason", func(a *Appointment) *string { return &a.Reason }),
	persistence.Field("notes", "notes", func(a *Appointment) *string { return &a.Notes }),
)

var MedicalRecordTable = persistence.NewTable[MedicalRecord]("medical_records", "MedicalRecord",
	persistence.Field("patient_id", "patientId", func(m *MedicalRecord) *int64 { return &m.PatientID }),
	persistence.Field("doctor_id", "doctorId", func(m *MedicalRecord) *int64 { return &m.DoctorID }),
	persistence.Field("visit_date", "visitDate", func(m *MedicalRecord) *time.Time { return &m.VisitDate }),
	persistence.Field("diagnosis", "diagnosis", func(m *MedicalRecord) *string { return &m.Diagnosis }),
	persistence.Field("symptoms", "symptoms", func(m *MedicalRecord) *string { return &m.Symptoms }),
	persistence.Field("treatment", "treatment", func(m *MedicalRecord) *string { return &m.Treatment }),
	persistence.Field("notes", "notes", func(m *MedicalRecord) *string { return &m.Notes }),
)

var PrescriptionTable = persistence.NewTable[Prescription]("prescriptions", "Prescription",
	persistence.Field("medical_record_id", "medicalRecordId", func(r *Prescription) *int64 { return &r.MedicalRecordID }),
	persistence.Field("medication_name", "medicationName", func(r *Prescription) *string { return &r.MedicationName }),
	persistence.Field("dosage", "dosage", func(r *Prescription) *string { return &r.Dosage }),
	persistence.Field("frequency", "frequency", func(r *Prescription) *string { return &r.Frequency }),
	persistence.Field("duration_days", "durationDays", func(r *Prescription) *int { return &r.DurationDays }),
	persistence.Field("instructions", "instructions", func(r *Prescription) *string { return &r.Instructions }),
)

var BillingTable = persistence.NewTable[Billing]("billings", "Billing",
	persistence.Field("patient_id", "patientId", func(b *Billing) *int64 { return &b.PatientID }),
	persistence.Field("billing_date", "billingDate", func(b *Billing) *time.Time { return &b.BillingDate }),
	persistence.Field("total_amount", "totalAmount", func(b *Billing) *int64 { return &b.TotalAmount }),
	persistence.Field("paid_amount", "paidAmount", func(b *Billing) *int64 { return &b.PaidAmount }),
	persistence.Field("outstanding_amount", "outstandingAmount", func(b *Billing) *int64 { return &b.OutstandingAmount }),
	persistence.Field("payment_status", "paymentStatus", func(b *Billing) *string { return &b.PaymentStatus }),
	persistence.Field("payment_method", "paymentMethod", func(b *Billing) *string { return &b.PaymentMethod }),
	persistence.Field("description", "description", func(b *Billing) *string { return &b.Description }),
	persistence.Field("notes", "notes", func(b *Billing) *string { return &b.Notes }),
)

var UserTable = persistence.NewTable[User]("users", "User",
	persistence.Field("username", "username", func(u *User) *string { return &u.Username }),
	persistence.Field("email", "email", func(u *User) *string { return &u.Email }),
	persistence.Field("password_hash", "passwordHash", func(u *User) *string { return &u.PasswordHash }).Sensitive(),
	persistence.Field("first_name", "firstName", func(u *User) *string { return &u.FirstName }),
	persistence.Field("last_name", "lastName", func(u *User) *string { return &u.LastName }),
	persistence.Field("role", "role", func(u *User) *string { return &u.Role }),
	persistence.Field("is_active", "isActive", func(u *User) *bool { return &u.IsActive }),
	persistence.NullableField("last_login_at", "lastLoginAt", func(u *User) **time.Time { return &u.LastLoginAt }),
)
