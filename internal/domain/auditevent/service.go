package auditevent

import (
	"context"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// entityNames lists the record types that produce audit rows.
var entityNames = map[string]bool{
	records.DepartmentTable.EntityName():    true,
	records.DoctorTable.EntityName():        true,
	records.PatientTable.EntityName():       true,
	records.AppointmentTable.EntityName():   true,
	records.MedicalRecordTable.EntityName(): true,
	records.PrescriptionTable.EntityName():  true,
	records.BillingTable.EntityName():       true,
	records.UserTable.EntityName():          true,
}

var actions = map[persistence.Action]bool{
	persistence.ActionCreated:  true,
	persistence.ActionModified: true,
	persistence.ActionDeleted:  true,
}

// Query filters the audit trail. Zero fields match everything.
type Query struct {
	EntityName string
	EntityID   int64
	Action     string
}

// Service reads the audit trail. Audit rows are written by the unit of
// work and never changed here.
type Service struct {
	uow *records.Factory
}

func NewService(uow *records.Factory) *Service {
	return &Service{uow: uow}
}

// ListAuditLogs pages audit records, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, q Query, p pagination.Params) ([]persistence.AuditRecord, int, error) {
	if q.EntityName != "" && !entityNames[q.EntityName] {
		return nil, 0, fmt.Errorf("%w: unknown entity %q", persistence.ErrInvalid, q.EntityName)
	}
	if q.Action != "" && !actions[persistence.Action(q.Action)] {
		return nil, 0, fmt.Errorf("%w: unknown action %q", persistence.ErrInvalid, q.Action)
	}
	if q.EntityID < 0 {
		return nil, 0, fmt.Errorf("%w: entityId must be positive", persistence.ErrInvalid)
	}

	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	recs, total, err := uow.AuditLogs.Find(ctx, persistence.AuditQuery{
		EntityName: q.EntityName,
		EntityID:   q.EntityID,
		Action:     persistence.Action(q.Action),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	if recs == nil {
		recs = []persistence.AuditRecord{}
	}
	return recs, total, nil
}

// EntityHistory returns every audit record of one entity, newest first.
func (s *Service) EntityHistory(ctx context.Context, entityName string, id int64, p pagination.Params) ([]persistence.AuditRecord, int, error) {
	if entityName == "" {
		return nil, 0, fmt.Errorf("%w: entity is required", persistence.ErrInvalid)
	}
	return s.ListAuditLogs(ctx, Query{EntityName: entityName, EntityID: id}, p)
}
