package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
)

// Designation is a job-title catalog entry.
type Designation struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Level       int       `db:"level" json:"level"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DesignationRepository handles designation persistence
type DesignationRepository struct {
	db *database.DB
}

// NewDesignationRepository creates a new designation repository
func NewDesignationRepository(db *database.DB) *DesignationRepository {
	return &DesignationRepository{db: db}
}

// Create inserts a designation. Titles are unique.
func (r *DesignationRepository) Create(ctx context.Context, d *Designation) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO designations (id, title, level, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, d.ID, d.Title, d.Level, d.Description).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("a designation with this title already exists")
	}
	return err
}

// GetByID gets a designation by id.
func (r *DesignationRepository) GetByID(ctx context.Context, id string) (*Designation, error) {
	var d Designation
	query := `SELECT id, title, level, description, created_at, updated_at FROM designations WHERE id = $1`
	err := r.db.GetContext(ctx, &d, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("designation")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List lists all designations ordered by level then title.
func (r *DesignationRepository) List(ctx context.Context) ([]*Designation, error) {
	var designations []*Designation
	query := `SELECT id, title, level, description, created_at, updated_at FROM designations ORDER BY level, title`
	if err := r.db.SelectContext(ctx, &designations, query); err != nil {
		return nil, err
	}
	return designations, nil
}

// Update updates a designation.
func (r *DesignationRepository) Update(ctx context.Context, d *Designation) error {
	query := `
		UPDATE designations SET title = $2, level = $3, description = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, d.ID, d.Title, d.Level, d.Description)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("a designation with this title already exists")
	}
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("designation")
	}
	return nil
}

// EmployeeCount counts employees currently holding the designation title.
func (r *DesignationRepository) EmployeeCount(ctx context.Context, title string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM employees WHERE designation = $1`, title)
	return count, err
}

// Delete removes a designation.
func (r *DesignationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM designations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("designation")
	}
	return nil
}
