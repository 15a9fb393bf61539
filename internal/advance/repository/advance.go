package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// Advance statuses
const (
	StatusPending  = "PENDING"
	StatusPartial  = "PARTIAL"
	StatusDeducted = "DEDUCTED"
)

// Advance is a salary advance recovered by pay-runs at its deduction
// period.
type Advance struct {
	ID              string          `db:"id" json:"id"`
	EmployeeID      string          `db:"employee_id" json:"employee_id"`
	AdvanceMonth    int             `db:"advance_month" json:"-"`
	AdvanceYear     int             `db:"advance_year" json:"-"`
	DeductionMonth  int             `db:"deduction_month" json:"-"`
	DeductionYear   int             `db:"deduction_year" json:"-"`
	PaidAmount      decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	RemainingAmount decimal.Decimal `db:"remaining_amount" json:"remaining_amount"`
	Status          string          `db:"status" json:"status"`
	Remarks         string          `db:"remarks" json:"remarks"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AdvancePeriod returns the period the advance was paid in.
func (a *Advance) AdvancePeriod() period.Period {
	return period.New(time.Month(a.AdvanceMonth), a.AdvanceYear)
}

// DeductionPeriod returns the period recovery is scheduled for.
func (a *Advance) DeductionPeriod() period.Period {
	return period.New(time.Month(a.DeductionMonth), a.DeductionYear)
}

// ListParams holds parameters for listing advances
type ListParams struct {
	EmployeeID string
	Status     string
	Page       int
	PerPage    int
}

// AdvanceRepository handles advance persistence
type AdvanceRepository struct {
	db *database.DB
}

// NewAdvanceRepository creates a new advance repository
func NewAdvanceRepository(db *database.DB) *AdvanceRepository {
	return &AdvanceRepository{db: db}
}

const advanceColumns = `
	id, employee_id, advance_month, advance_year, deduction_month, deduction_year,
	paid_amount, remaining_amount, status, remarks, created_at, updated_at
`

// Create inserts an advance.
func (r *AdvanceRepository) Create(ctx context.Context, a *Advance) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	query := `
		INSERT INTO advances (
			id, employee_id, advance_month, advance_year, deduction_month,
			deduction_year, paid_amount, remaining_amount, status, remarks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		a.ID, a.EmployeeID, a.AdvanceMonth, a.AdvanceYear, a.DeductionMonth,
		a.DeductionYear, a.PaidAmount, a.RemainingAmount, a.Status, a.Remarks,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// GetByID gets an advance by id.
func (r *AdvanceRepository) GetByID(ctx context.Context, id string) (*Advance, error) {
	var a Advance
	query := `SELECT ` + advanceColumns + ` FROM advances WHERE id = $1`
	err := r.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("advance")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List lists advances with filters.
func (r *AdvanceRepository) List(ctx context.Context, params ListParams) ([]*Advance, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if params.EmployeeID != "" {
		where += fmt.Sprintf(" AND employee_id = $%d", argNum)
		args = append(args, params.EmployeeID)
		argNum++
	}
	if params.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, params.Status)
		argNum++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM advances "+where, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := fmt.Sprintf(`SELECT %s FROM advances %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		advanceColumns, where, argNum, argNum+1)
	args = append(args, params.PerPage, offset)

	var advances []*Advance
	if err := r.db.SelectContext(ctx, &advances, query, args...); err != nil {
		return nil, 0, err
	}
	return advances, total, nil
}

// Update replaces the mutable fields of a PENDING advance.
func (r *AdvanceRepository) Update(ctx context.Context, a *Advance) error {
	query := `
		UPDATE advances SET
			advance_month = $2, advance_year = $3, deduction_month = $4,
			deduction_year = $5, paid_amount = $6, remaining_amount = $7,
			remarks = $8, updated_at = NOW()
		WHERE id = $1 AND status = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		a.ID, a.AdvanceMonth, a.AdvanceYear, a.DeductionMonth, a.DeductionYear,
		a.PaidAmount, a.RemainingAmount, a.Remarks, StatusPending,
	)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.Conflict("advance is no longer pending")
	}
	return nil
}

// Delete removes a PENDING advance. Advances a pay-run has touched stay
// for the payroll trail.
func (r *AdvanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM advances WHERE id = $1 AND status = $2`, id, StatusPending)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM advances WHERE id = $1)`, id); err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("advance has pay-run deductions recorded")
		}
		return apperr.NotFound("advance")
	}
	return nil
}

// ListDueTx returns an employee's recoverable advances inside a pay-run
// transaction: not yet fully deducted, deduction period at or before the
// run period, oldest deduction period first.
func (r *AdvanceRepository) ListDueTx(ctx context.Context, tx *sqlx.Tx, employeeID string, p period.Period) ([]*Advance, error) {
	query := `
		SELECT ` + advanceColumns + `
		FROM advances
		WHERE employee_id = $1
		  AND status <> $2
		  AND (deduction_year * 12 + deduction_month - 1) <= $3
		ORDER BY deduction_year, deduction_month, created_at
	`
	var advances []*Advance
	if err := tx.SelectContext(ctx, &advances, query, employeeID, StatusDeducted, p.Index()); err != nil {
		return nil, err
	}
	return advances, nil
}

// ApplyDeductionTx records a pay-run deduction inside the transaction.
func (r *AdvanceRepository) ApplyDeductionTx(ctx context.Context, tx *sqlx.Tx, id string, remaining decimal.Decimal, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE advances SET remaining_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, remaining, status)
	return err
}
