package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/repository"
)

// UserService is the back-office view of the user directory. Accounts are
// never removed; Deactivate is the only way out.
type UserService struct {
	users DirectoryStore
	log   *slog.Logger
}

func NewUserService(users DirectoryStore, log *slog.Logger) *UserService {
	return &UserService{users: users, log: log.With("component", "users")}
}

type UserInput struct {
	Email     string
	FirstName *string
	LastName  *string
}

// Create registers an account ahead of its first login.
func (s *UserService) Create(ctx context.Context, in UserInput) (model.User, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return model.User{}, Validation("email is required")
	}
	u := model.User{Email: email, FirstName: trimmed(in.FirstName), LastName: trimmed(in.LastName), IsActive: true}
	switch err := s.users.Create(ctx, &u); {
	case errors.Is(err, repository.ErrEmailExists):
		return model.User{}, Conflict("a user with this email already exists")
	case err != nil:
		return model.User{}, Internal("create user", err)
	}
	s.log.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// Get returns an active user. Deactivated accounts read as missing.
func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return model.User{}, NotFound("user not found")
	case err != nil:
		return model.User{}, Internal("load user", err)
	case !u.IsActive:
		return model.User{}, NotFound("user not found")
	}
	return u, nil
}

// Update replaces the name fields that are set; nil leaves a field alone.
func (s *UserService) Update(ctx context.Context, id string, firstName, lastName *string) (model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if firstName != nil {
		u.FirstName = trimmed(firstName)
	}
	if lastName != nil {
		u.LastName = trimmed(lastName)
	}
	switch err := s.users.Update(ctx, id, u.FirstName, u.LastName); {
	case errors.Is(err, repository.ErrUserNotFound):
		return model.User{}, NotFound("user not found")
	case err != nil:
		return model.User{}, Internal("update user", err)
	}
	return u, nil
}

// Deactivate clears the active flag. Existing sessions stop resolving and
// the address can no longer request login codes.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	switch err := s.users.Deactivate(ctx, id); {
	case errors.Is(err, repository.ErrUserNotFound):
		return NotFound("user not found")
	case err != nil:
		return Internal("deactivate user", err)
	}
	s.log.Info("user deactivated", "user_id", id)
	return nil
}

// Search matches active users by e-mail or name, newest first.
func (s *UserService) Search(ctx context.Context, query string, limit, offset int) (model.Page[model.User], error) {
	limit, offset = clampPage(limit, offset)
	items, total, err := s.users.Search(ctx, query, limit, offset)
	if err != nil {
		return model.Page[model.User]{}, Internal("search users", err)
	}
	return model.Page[model.User]{Items: items, Total: total}, nil
}

func (s *UserService) CountActive(ctx context.Context) (int64, error) {
	n, err := s.users.CountActive(ctx)
	if err != nil {
		return 0, Internal("count users", err)
	}
	return n, nil
}

// trimmed returns nil for a missing or blank name.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
