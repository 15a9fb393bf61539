package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
)

// Role names form a closed set, seeded at bootstrap and never deleted.
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleHR       = "HR"
	RoleEmployee = "EMPLOYEE"
	RoleUser     = "USER"
)

// AllRoles lists the closed role set.
var AllRoles = []string{RoleAdmin, RoleManager, RoleHR, RoleEmployee, RoleUser}

// User is the identity aggregate. The password hash never leaves the
// server and is excluded from JSON.
type User struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Enabled      bool           `db:"enabled" json:"enabled"`
	LastLoginAt  *time.Time     `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
}

// UserRepository handles user and role persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	u.id, u.username, u.email, u.password_hash, u.enabled,
	u.last_login_at, u.created_at, u.updated_at,
	COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
`

// Create inserts a user and its role assignments in one transaction.
// Username and email uniqueness is enforced by the store and surfaced as
// Conflict.
func (r *UserRepository) Create(ctx context.Context, user *User, roles []string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (id, username, email, password_hash, enabled)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			user.ID, user.Username, user.Email, user.PasswordHash, user.Enabled,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}

		for _, role := range roles {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_roles (user_id, role_id)
				SELECT $1, id FROM roles WHERE name = $2
			`, user.ID, role); err != nil {
				return err
			}
		}
		return nil
	})

	if database.IsUniqueViolation(err) {
		return apperr.Conflict("username or email already taken")
	}
	if err != nil {
		return err
	}

	user.Roles = roles
	return nil
}

// GetByUsername gets a user with its role set. Username match is
// case-sensitive.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		WHERE u.username = $1
		GROUP BY u.id
	`
	err := r.db.GetContext(ctx, &user, query, username)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID gets a user with its role set
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var user User
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		WHERE u.id = $1
		GROUP BY u.id
	`
	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// UpdatePassword rotates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// SetEnabled soft-disables or re-enables a user. Users are never hard
// deleted while audit entries reference them.
func (r *UserRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET enabled = $2, updated_at = NOW() WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}
