package records

import (
	"context"

	"github.com/ehr/hms/internal/platform/persistence"
)

// UnitOfWork exposes one repository per record type over a single session.
// Complete, the explicit transaction methods and Close come from the
// embedded session.
type UnitOfWork struct {
	*persistence.Session

	Departments    *persistence.Repository[Department]
	Doctors        *persistence.Repository[Doctor]
	Patients       *persistence.Repository[Patient]
	Appointments   *persistence.Repository[Appointment]
	MedicalRecords *persistence.Repository[MedicalRecord]
	Prescriptions  *persistence.Repository[Prescription]
	Billings       *persistence.Repository[Billing]
	Users          *persistence.Repository[User]
	AuditLogs      *persistence.AuditTrail
}

func NewUnitOfWork(s *persistence.Session) *UnitOfWork {
	return &UnitOfWork{
		Session:        s,
		Departments:    persistence.NewRepository(s, DepartmentTable),
		Doctors:        persistence.NewRepository(s, DoctorTable),
		Patients:       persistence.NewRepository(s, PatientTable),
		Appointments:   persistence.NewRepository(s, AppointmentTable),
		MedicalRecords: persistence.NewRepository(s, MedicalRecordTable),
		Prescriptions:  persistence.NewRepository(s, PrescriptionTable),
		Billings:       persistence.NewRepository(s, BillingTable),
		Users:          persistence.NewRepository(s, UserTable),
		AuditLogs:      s.AuditTrail(),
	}
}

// Factory creates units of work over one store.
type Factory struct {
	store persistence.Store
	opts  []persistence.Option
}

func NewFactory(store persistence.Store, opts ...persistence.Option) *Factory {
	return &Factory{store: store, opts: opts}
}

// Begin starts a unit of work attributed to the principal carried by ctx.
// The caller must Close it.
func (f *Factory) Begin(ctx context.Context) *UnitOfWork {
	return NewUnitOfWork(persistence.NewSession(f.store, persistence.PrincipalFromContext(ctx), f.opts...))
}
