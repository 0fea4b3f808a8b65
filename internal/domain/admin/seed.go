package admin

import (
	"context"
	"fmt"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/persistence"
)

var seedDepartments = []DepartmentInput{
	{Name: "Cardiology", Description: "Heart and cardiovascular system"},
	{Name: "Neurology", Description: "Brain and nervous system"},
	{Name: "Orthopedics", Description: "Bones, joints and muscles"},
	{Name: "Pediatrics", Description: "Children's health"},
	{Name: "General Medicine", Description: "General health consultation"},
}

// SeedAdminUsername is the account created by Seed.
const SeedAdminUsername = "admin"

type SeedResult struct {
	Departments  int
	AdminCreated bool
}

// Seed adds the standard departments and an administrator account. Records
// that already exist are left untouched, so Seed can run on every start.
func (s *Service) Seed(ctx context.Context, adminPassword string) (*SeedResult, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	res := &SeedResult{}
	for _, in := range seedDepartments {
		exists, err := uow.Departments.Any(ctx, persistence.EqualFold("name", in.Name))
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		d := &records.Department{}
		in.applyTo(d)
		uow.Departments.Add(d)
		res.Departments++
	}

	exists, err := uow.Users.Any(ctx, persistence.Eq("username", SeedAdminUsername))
	if err != nil {
		return nil, err
	}
	if !exists {
		hash, err := auth.HashPassword(adminPassword)
		if err != nil {
			return nil, fmt.Errorf("admin password: %w", err)
		}
		uow.Users.Add(&records.User{
			Username:     SeedAdminUsername,
			Email:        "admin@hospital.local",
			PasswordHash: hash,
			FirstName:    "System",
			LastName:     "Administrator",
			Role:         records.RoleAdmin,
			IsActive:     true,
		})
		res.AdminCreated = true
	}

	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return res, nil
}
