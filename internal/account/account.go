// Package account registers users and logs them in.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/credential"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

// Session is what a successful register or login hands back.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

type Service struct {
	users     *store.UserStore
	creds     *credential.Service
	dummyHash string
}

// NewService precomputes the hash compared against when an email is
// unknown, so both login failures cost one bcrypt comparison.
func NewService(users *store.UserStore, creds *credential.Service) (*Service, error) {
	dummy, err := creds.HashPassword("flatmate-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Service{users: users, creds: creds, dummyHash: dummy}, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	switch {
	case name == "":
		return nil, apperr.Validation("name is required")
	case email == "":
		return nil, apperr.Validation("email is required")
	case in.Password == "":
		return nil, apperr.Validation("password is required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrEmailTaken
	}

	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, email, name, in.Phone, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return s.session(u)
}

// Login checks email and password. Unknown emails and wrong passwords fail
// the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.creds.VerifyPassword(password, s.dummyHash)
		return nil, apperr.ErrInvalidCredentials
	}
	if !s.creds.VerifyPassword(password, u.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u *model.User) (*Session, error) {
	token, err := s.creds.IssueToken(u.ID, 0)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, TokenType: "bearer", User: u}, nil
}
