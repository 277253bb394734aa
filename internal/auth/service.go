package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Repository is the persistence port for accounts.
type Repository interface {
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u User) (int64, error)
	ListUsers(ctx context.Context) ([]User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort records security-relevant events.
type AuditPort interface {
	Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string)
}

type Service struct {
	repo   Repository
	issuer *TokenIssuer
	audit  AuditPort
	logger *slog.Logger
}

func NewService(repo Repository, issuer *TokenIssuer, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, audit: audit, logger: logger}
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Authenticate verifies credentials and issues an access token. Inactive
// accounts fail the same way bad credentials do.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Session, error) {
	user, err := s.repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a comparison anyway so missing and present usernames
			// take similar time.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("record last login failed", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, user.ID, "LOGIN", "users", user.ID, "")
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, actorID int64, input CreateUserInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		Username:     input.Username,
		FullName:     input.FullName,
		Role:         input.Role,
		Email:        input.Email,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "users", id, "username="+input.Username)
	}
	s.logger.Info("user created", "user_id", id, "username", input.Username, "role", input.Role)
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Deactivate disables an account. The account keeps its history.
func (s *Service) Deactivate(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return ErrSelfDeactivation
	}
	if err := s.repo.SetActive(ctx, userID, false); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "DEACTIVATE", "users", userID, "")
	}
	return nil
}
