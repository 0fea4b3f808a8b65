package admin

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/persistence"
)

type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *DepartmentInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: department name is required", persistence.ErrInvalid)
	}
	return nil
}

func (in *DepartmentInput) applyTo(d *records.Department) {
	d.Name = strings.TrimSpace(in.Name)
	d.Description = strings.TrimSpace(in.Description)
}

// RegisterInput is a self-service registration. Registered accounts always
// get the Patient role.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (in *RegisterInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", persistence.ErrInvalid)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", persistence.ErrInvalid, in.Email)
	}
	return nil
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserUpdate changes an account. Nil fields are left alone.
type UserUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
}

func (u *UserUpdate) validate() error {
	if u.Role != nil && !validRoles[*u.Role] {
		return fmt.Errorf("%w: unknown role %q", persistence.ErrInvalid, *u.Role)
	}
	return nil
}

func (u *UserUpdate) applyTo(user *records.User) {
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
}

var validRoles = map[string]bool{
	records.RoleAdmin:        true,
	records.RoleDoctor:       true,
	records.RoleReceptionist: true,
	records.RolePatient:      true,
}

// Session is returned by login and registration.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *records.User `json:"user"`
}
