package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

// ErrInvalidCredentials is returned for an unknown user, an inactive account
// and a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Register creates a Patient account and signs the caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.CreateUser(ctx, in, records.RolePatient)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateUser creates an active account with the given role.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput, role string) (*records.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("%w: unknown role %q", persistence.ErrInvalid, role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if taken, err := uow.Users.Any(ctx, persistence.EqualFold("username", username)); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("username %q already exists: %w", username, persistence.ErrConflict)
	}
	if taken, err := uow.Users.Any(ctx, persistence.EqualFold("email", email)); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("email %q already exists: %w", email, persistence.ErrConflict)
	}

	u := &records.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		IsActive:     true,
	}
	uow.Users.Add(u)
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies the credentials, records the login time and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	ctx = persistence.WithPrincipal(ctx, in.Username)
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	found, err := uow.Users.Find(ctx, persistence.Eq("username", in.Username))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrInvalidCredentials
	}
	u := found[0]
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := persistence.Now()
	u.LastLoginAt = &now
	if err := uow.Users.Update(u); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return s.issue(u)
}

// Me returns the account of the signed-in user.
func (s *Service) Me(ctx context.Context, username string) (*records.User, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)
	return findUser(ctx, uow, username)
}

func (s *Service) ChangePassword(ctx context.Context, username string, in ChangePasswordInput) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	u, err := findUser(ctx, uow, username)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(u.PasswordHash, in.CurrentPassword); err != nil {
		return fmt.Errorf("%w: current password is incorrect", persistence.ErrInvalid)
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := uow.Users.Update(u); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, q string, p pagination.Params) ([]*records.User, int, error) {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	page := persistence.Page{OrderBy: p.OrderOr("username"), Limit: p.Limit, Offset: p.Offset}
	if q != "" {
		page.Filters = append(page.Filters, persistence.Or(
			persistence.Contains("username", q),
			persistence.Contains("email", q),
			persistence.Contains("first_name", q),
			persistence.Contains("last_name", q),
		))
	}
	return uow.Users.FindPage(ctx, page)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*records.User, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	u, err := uow.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.applyTo(u)
	if err := uow.Users.Update(u); err != nil {
		return nil, err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	uow := s.uow.Begin(ctx)
	defer uow.Close(ctx)

	if err := uow.Users.SoftDelete(ctx, id); err != nil {
		return err
	}
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

func (s *Service) issue(u *records.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID, u.Username, []string{u.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func findUser(ctx context.Context, uow *records.UnitOfWork, username string) (*records.User, error) {
	found, err := uow.Users.Find(ctx, persistence.Eq("username", username))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("user %q: %w", username, persistence.ErrNotFound)
	}
	return found[0], nil
}
