package auth

import (
	"context"
	"testing"
	"time"

	"direct-chat/internal/config"
	"direct-chat/internal/database"
	"direct-chat/internal/models"
	"direct-chat/pkg/snowflake"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)
	db := database.NewMemoryDB(ids).WithHashCost(bcrypt.MinCost)
	return NewService(db, config.JWTConfig{Secret: []byte("test-secret"), ExpiresIn: time.Hour})
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	reg, err := svc.Register(ctx, &models.RegisterRequest{Username: "  alice ", Email: "alice@example.com", Password: "hunter22!"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.Token)
	require.Equal(t, "alice", reg.User.Username)

	login, err := svc.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "hunter22!"})
	require.NoError(t, err)
	require.Empty(t, login.User.PasswordHash)

	user, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, user.ID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22!"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "hunter22!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)

	cases := map[string]*models.RegisterRequest{
		"missing":  {Username: "alice"},
		"email":    {Username: "alice", Email: "not-an-email", Password: "hunter22!"},
		"password": {Username: "alice", Email: "alice@example.com", Password: "short"},
		"username": {Username: " a ", Email: "alice@example.com", Password: "hunter22!"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	reg, err := svc.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22!"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(svc.users, config.JWTConfig{Secret: []byte("other-secret"), ExpiresIn: time.Hour})
	_, err = other.Authenticate(ctx, reg.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, reg.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
