package auth

import (
	"errors"
	"time"
)

// Application roles. Stored as strings but only these values are issued.
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleSales   = "Sales"
)

// User is an application account. Accounts are deactivated, never deleted,
// because audit records and documents reference them.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	Email        string     `json:"email,omitempty"`
	IsActive     bool       `json:"is_active"`
	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateUserInput describes a new account request.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,max=100"`
	Role     string `json:"role" validate:"required,oneof=Admin Manager Sales"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// ErrInvalidCredentials indicates login failure. Deliberately does not say
// whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid username or password")

// ErrUsernameTaken indicates a duplicate username.
var ErrUsernameTaken = errors.New("auth: username already exists")

// ErrUserNotFound indicates a missing account.
var ErrUserNotFound = errors.New("auth: user not found")

// ErrSelfDeactivation indicates an attempt to deactivate one's own account.
var ErrSelfDeactivation = errors.New("auth: cannot deactivate your own account")
