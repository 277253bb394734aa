package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}, nextID: 1}
}

func (m *memoryRepo) UserByUsername(_ context.Context, username string) (User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryRepo) UserByID(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryRepo) CreateUser(_ context.Context, u User) (int64, error) {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return 0, ErrUsernameTaken
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memoryRepo) ListUsers(_ context.Context) ([]User, error) {
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *memoryRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = &at
	m.users[id] = u
	return nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	issuer := NewTokenIssuer("test-secret-key-for-unit-tests", time.Hour)
	svc := NewService(repo, issuer, nil, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	return svc, repo
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func seedUser(t *testing.T, repo *memoryRepo, username, password, role string, active bool) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id, err := repo.CreateUser(context.Background(), User{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     username,
		Role:         role,
		IsActive:     active,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	return id
}

func TestAuthenticate(t *testing.T) {
	svc, repo := newTestService(t)
	id := seedUser(t, repo, "admin", "correct-horse", RoleAdmin, true)

	session, err := svc.Authenticate(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "admin", session.User.Username)
	assert.Empty(t, session.User.PasswordHash, "hash must not survive into the session user")
	assert.NotNil(t, repo.users[id].LastLogin, "login must stamp last_login")

	claims, err := svc.issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "admin", "correct-horse", RoleAdmin, true)

	_, err := svc.Authenticate(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown users must be indistinguishable from wrong passwords")
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "former", "correct-horse", RoleSales, false)

	_, err := svc.Authenticate(context.Background(), "former", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser(t *testing.T) {
	svc, repo := newTestService(t)

	user, err := svc.CreateUser(context.Background(), 0, CreateUserInput{
		Username: "cashier1",
		Password: "a-long-password",
		FullName: "Cashier One",
		Role:     RoleSales,
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "a-long-password", repo.users[user.ID].PasswordHash)

	session, err := svc.Authenticate(context.Background(), "cashier1", "a-long-password")
	require.NoError(t, err)
	assert.Equal(t, RoleSales, session.User.Role)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "taken", "correct-horse", RoleSales, true)

	_, err := svc.CreateUser(context.Background(), 0, CreateUserInput{
		Username: "taken",
		Password: "another-password",
		FullName: "Someone Else",
		Role:     RoleSales,
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestDeactivate(t *testing.T) {
	svc, repo := newTestService(t)
	adminID := seedUser(t, repo, "admin", "correct-horse", RoleAdmin, true)
	salesID := seedUser(t, repo, "sales", "correct-horse", RoleSales, true)

	require.NoError(t, svc.Deactivate(context.Background(), adminID, salesID))
	assert.False(t, repo.users[salesID].IsActive)

	assert.ErrorIs(t, svc.Deactivate(context.Background(), adminID, adminID), ErrSelfDeactivation)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), adminID, 999), ErrUserNotFound)
}

func TestTokenVerifyRejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("secret-one", time.Hour)
	other := NewTokenIssuer("secret-two", time.Hour)

	token, _, err := issuer.Issue(User{ID: 7, Username: "x", Role: RoleSales})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err, "token signed with a different secret must not verify")

	expired := NewTokenIssuer("secret-one", -time.Minute)
	token, _, err = expired.Issue(User{ID: 7, Username: "x", Role: RoleSales})
	require.NoError(t, err)
	_, err = issuer.Verify(token)
	assert.Error(t, err, "expired tokens must not verify")
}
