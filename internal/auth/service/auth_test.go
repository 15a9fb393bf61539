package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	"github.com/peopleops/hrms-backend/internal/auth/repository"
	"github.com/peopleops/hrms-backend/internal/auth/service"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/testutil"
)

type discardSink struct{}

func (discardSink) Create(ctx context.Context, entry *audit.Entry) error { return nil }

func newService(t *testing.T) (*service.AuthService, *testutil.MockDB) {
	t.Helper()
	db := testutil.NewMockDB(t)
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "unit-test-secret-at-least-32-bytes!!",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "hrms-test",
	})
	recorder := audit.NewRecorder(discardSink{}, 64, logger.Nop())
	svc := service.NewAuthService(repository.NewUserRepository(db.DB), manager, recorder, logger.Nop())
	return svc, db
}

var userCols = []string{
	"id", "username", "email", "password_hash", "enabled",
	"last_login_at", "created_at", "updated_at", "roles",
}

func userRow(t *testing.T, username, password string, enabled bool) *sqlmock.Rows {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	return testutil.Rows(userCols...).AddRow(
		"u1", username, username+"@example.com", string(hash), enabled,
		nil, now, now, "{USER,HR}",
	)
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		svc, db := newService(t)
		db.Mock.ExpectQuery(`FROM users u`).
			WillReturnRows(userRow(t, "alice", "s3cret-pass", true))
		db.Mock.ExpectExec(`UPDATE users SET last_login_at`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := svc.Login(context.Background(), &service.LoginRequest{
			Username: "alice",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, "alice", resp.User.Username)
		assert.ElementsMatch(t, []string{"USER", "HR"}, resp.User.Roles)
		db.ExpectationsWereMet(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, db := newService(t)
		db.Mock.ExpectQuery(`FROM users u`).
			WillReturnRows(testutil.Rows(userCols...))

		_, err := svc.Login(context.Background(), &service.LoginRequest{
			Username: "ghost",
			Password: "whatever1",
		})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidCredentials), "got %v", err)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, db := newService(t)
		db.Mock.ExpectQuery(`FROM users u`).
			WillReturnRows(userRow(t, "alice", "s3cret-pass", true))

		_, err := svc.Login(context.Background(), &service.LoginRequest{
			Username: "alice",
			Password: "not-the-password",
		})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidCredentials), "got %v", err)
	})

	t.Run("disabled user", func(t *testing.T) {
		svc, db := newService(t)
		db.Mock.ExpectQuery(`FROM users u`).
			WillReturnRows(userRow(t, "alice", "s3cret-pass", false))

		_, err := svc.Login(context.Background(), &service.LoginRequest{
			Username: "alice",
			Password: "s3cret-pass",
		})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidCredentials), "got %v", err)
	})
}

func TestRegister(t *testing.T) {
	t.Run("creates a user with the baseline role", func(t *testing.T) {
		svc, db := newService(t)
		now := time.Now().UTC()
		db.Mock.ExpectBegin()
		db.Mock.ExpectQuery(`INSERT INTO users`).
			WillReturnRows(testutil.Rows("created_at", "updated_at").AddRow(now, now))
		db.Mock.ExpectExec(`INSERT INTO user_roles`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		db.Mock.ExpectCommit()

		profile, err := svc.Register(context.Background(), &service.RegisterRequest{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "longenoughpassword",
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", profile.Username)
		assert.Equal(t, []string{repository.RoleUser}, profile.Roles)
		assert.True(t, profile.Enabled)
		db.ExpectationsWereMet(t)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		svc, db := newService(t)
		db.Mock.ExpectBegin()
		db.Mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})
		db.Mock.ExpectRollback()

		_, err := svc.Register(context.Background(), &service.RegisterRequest{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "longenoughpassword",
		})
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
		db.ExpectationsWereMet(t)
	})
}
