package admin

import (
	"context"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// Service manages departments and user accounts.
type Service struct {
	uow    *records.Factory
	tokens *auth.TokenIssuer
}

func NewService(uow *records.Factory, tokens *auth.TokenIssuer) *Service {
	return &Service{uow: uow, tokens: tokens}
}

// -- Departments --

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (*records.Department, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	d := &records.Department{}
	in.applyTo(d)
	if err := ensureUniqueDepartment(ctx, uow, d.Name, 0); err != nil {
		return nil, err
	}
	uow.Departments.Add(d)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	return d, nil
}

func (s *Service) GetDepartment(ctx context.Context, id int64) (*records.Department, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return uow.Departments.GetByID(ctx, id)
}

// ListDepartments pages departments, optionally narrowed to names containing q.
func (s *Service) ListDepartments(ctx context.Context, q string, p pagination.Params) ([]*records.Department, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	page := persistence.Page{OrderBy: p.OrderOr("name"), Limit: p.Limit, Offset: p.Offset}
	if q != "" {
		page.Filters = append(page.Filters, persistence.Contains("name", q))
	}
	return uow.Departments.FindPage(ctx, page)
}

func (s *Service) UpdateDepartment(ctx context.Context, id int64, in DepartmentInput) (*records.Department, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	d, err := uow.Departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(d)
	if err := ensureUniqueDepartment(ctx, uow, d.Name, id); err != nil {
		return nil, err
	}
	if err := uow.Departments.Update(d); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update department %d: %w", id, err)
	}
	return d, nil
}

// DeleteDepartment soft-deletes the department.
func (s *Service) DeleteDepartment(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Departments.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete department %d: %w", id, err)
	}
	return nil
}

// PurgeDepartment removes the department row. Departments still referenced
// by a doctor are kept.
func (s *Service) PurgeDepartment(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	d, err := uow.Departments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	staffed, err := uow.Doctors.Any(ctx, persistence.Eq("department_id", id))
	if err != nil {
		return err
	}
	if staffed {
		return fmt.Errorf("department %d still has doctors: %w", id, persistence.ErrConflict)
	}
	if err := uow.Departments.Delete(d); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("purge department %d: %w", id, err)
	}
	return nil
}

func ensureUniqueDepartment(ctx context.Context, uow *records.UnitOfWork, name string, self int64) error {
	filters := []persistence.Filter{persistence.EqualFold("name", name)}
	if self != 0 {
		filters = append(filters, persistence.Ne("id", self))
	}
	taken, err := uow.Departments.Any(ctx, filters...)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("department %q already exists: %w", name, persistence.ErrConflict)
	}
	return nil
}
