package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// Record is one employee's attendance for a calendar month. Consumed
// records have been read by a pay-run and are immutable from then on.
type Record struct {
	ID               string    `db:"id" json:"id"`
	EmployeeID       string    `db:"employee_id" json:"employee_id"`
	Month            int       `db:"month" json:"-"`
	Year             int       `db:"year" json:"-"`
	TotalWorkingDays int       `db:"total_working_days" json:"total_working_days"`
	PresentDays      int       `db:"present_days" json:"present_days"`
	AbsentDays       int       `db:"absent_days" json:"absent_days"`
	PaidLeave        int       `db:"paid_leave" json:"paid_leave"`
	UnpaidLeave      int       `db:"unpaid_leave" json:"unpaid_leave"`
	PayableDays      int       `db:"payable_days" json:"payable_days"`
	LossOfPayDays    int       `db:"loss_of_pay_days" json:"loss_of_pay_days"`
	Remarks          string    `db:"remarks" json:"remarks"`
	Consumed         bool      `db:"consumed" json:"consumed"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Period returns the record's pay period.
func (rec *Record) Period() period.Period {
	return period.New(time.Month(rec.Month), rec.Year)
}

// ListParams holds parameters for listing attendance records
type ListParams struct {
	EmployeeID string
	Month      int
	Year       int
	Page       int
	PerPage    int
}

// AttendanceRepository handles attendance persistence
type AttendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const recordColumns = `
	id, employee_id, month, year, total_working_days, present_days, absent_days,
	paid_leave, unpaid_leave, payable_days, loss_of_pay_days, remarks, consumed,
	created_at, updated_at
`

// Upsert inserts or replaces the record keyed by (employee, month, year).
// A record already consumed by a pay-run is immutable; the guarded upsert
// leaves it untouched and the caller sees Conflict.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO attendance_records (
			id, employee_id, month, year, total_working_days, present_days,
			absent_days, paid_leave, unpaid_leave, payable_days, loss_of_pay_days, remarks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (employee_id, month, year) DO UPDATE SET
			total_working_days = EXCLUDED.total_working_days,
			present_days = EXCLUDED.present_days,
			absent_days = EXCLUDED.absent_days,
			paid_leave = EXCLUDED.paid_leave,
			unpaid_leave = EXCLUDED.unpaid_leave,
			payable_days = EXCLUDED.payable_days,
			loss_of_pay_days = EXCLUDED.loss_of_pay_days,
			remarks = EXCLUDED.remarks,
			updated_at = NOW()
		WHERE attendance_records.consumed = FALSE
		RETURNING ` + recordColumns

	err := r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.EmployeeID, rec.Month, rec.Year, rec.TotalWorkingDays,
		rec.PresentDays, rec.AbsentDays, rec.PaidLeave, rec.UnpaidLeave,
		rec.PayableDays, rec.LossOfPayDays, rec.Remarks,
	).StructScan(rec)

	// The guarded upsert returns no row when the existing record is
	// already consumed.
	if err == sql.ErrNoRows {
		return apperr.Conflict("attendance record already consumed by a pay-run")
	}
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// GetByID gets a record by id.
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	err := r.db.GetContext(ctx, &rec, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("attendance record")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByPeriod gets the record for one employee and period.
func (r *AttendanceRepository) GetByPeriod(ctx context.Context, employeeID string, p period.Period) (*Record, error) {
	var rec Record
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE employee_id = $1 AND month = $2 AND year = $3`
	err := r.db.GetContext(ctx, &rec, query, employeeID, int(p.Month), p.Year)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("attendance record")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByPeriodTx is GetByPeriod inside a pay-run transaction.
func (r *AttendanceRepository) GetByPeriodTx(ctx context.Context, tx *sqlx.Tx, employeeID string, p period.Period) (*Record, error) {
	var rec Record
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE employee_id = $1 AND month = $2 AND year = $3`
	err := tx.GetContext(ctx, &rec, query, employeeID, int(p.Month), p.Year)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("attendance record")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List lists records with filters, newest period first.
func (r *AttendanceRepository) List(ctx context.Context, params ListParams) ([]*Record, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if params.EmployeeID != "" {
		where += fmt.Sprintf(" AND employee_id = $%d", argNum)
		args = append(args, params.EmployeeID)
		argNum++
	}
	if params.Month != 0 {
		where += fmt.Sprintf(" AND month = $%d", argNum)
		args = append(args, params.Month)
		argNum++
	}
	if params.Year != 0 {
		where += fmt.Sprintf(" AND year = $%d", argNum)
		args = append(args, params.Year)
		argNum++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance_records "+where, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := fmt.Sprintf(`SELECT %s FROM attendance_records %s ORDER BY year DESC, month DESC, employee_id LIMIT $%d OFFSET $%d`,
		recordColumns, where, argNum, argNum+1)
	args = append(args, params.PerPage, offset)

	var records []*Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// MarkConsumedTx flags a record as consumed inside the pay-run transaction.
func (r *AttendanceRepository) MarkConsumedTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE attendance_records SET consumed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// Delete removes a record. Consumed records cannot be deleted.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM attendance_records WHERE id = $1 AND consumed = FALSE`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		// Distinguish missing from consumed for the caller.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM attendance_records WHERE id = $1)`, id); err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("attendance record already consumed by a pay-run")
		}
		return apperr.NotFound("attendance record")
	}
	return nil
}
