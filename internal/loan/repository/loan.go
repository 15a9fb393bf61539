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

// Loan statuses
const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Installment statuses
const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
)

// Loan is an amortizing employee loan recovered one EMI per pay-run.
type Loan struct {
	ID                 string          `db:"id" json:"id"`
	EmployeeID         string          `db:"employee_id" json:"employee_id"`
	Principal          decimal.Decimal `db:"principal" json:"principal"`
	AnnualInterestRate decimal.Decimal `db:"annual_interest_rate" json:"annual_interest_rate"`
	EMICount           int             `db:"emi_count" json:"emi_count"`
	EMIAmount          decimal.Decimal `db:"emi_amount" json:"emi_amount"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	StartMonth         int             `db:"start_month" json:"-"`
	StartYear          int             `db:"start_year" json:"-"`
	PaidEMICount       int             `db:"paid_emi_count" json:"paid_emi_count"`
	RemainingBalance   decimal.Decimal `db:"remaining_balance" json:"remaining_balance"`
	Status             string          `db:"status" json:"status"`
	Remarks            string          `db:"remarks" json:"remarks"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// StartPeriod returns the first repayment period.
func (l *Loan) StartPeriod() period.Period {
	return period.New(time.Month(l.StartMonth), l.StartYear)
}

// ScheduleEntry is one persisted installment of a loan's plan.
type ScheduleEntry struct {
	ID       string          `db:"id" json:"-"`
	LoanID   string          `db:"loan_id" json:"-"`
	Sequence int             `db:"sequence" json:"sequence"`
	Month    int             `db:"month" json:"-"`
	Year     int             `db:"year" json:"-"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Status   string          `db:"status" json:"status"`
}

// Period returns the entry's repayment period.
func (e *ScheduleEntry) Period() period.Period {
	return period.New(time.Month(e.Month), e.Year)
}

// ListParams holds parameters for listing loans
type ListParams struct {
	EmployeeID string
	Status     string
	Page       int
	PerPage    int
}

// LoanRepository handles loan persistence
type LoanRepository struct {
	db *database.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `
	id, employee_id, principal, annual_interest_rate, emi_count, emi_amount,
	total_amount, start_month, start_year, paid_emi_count, remaining_balance,
	status, remarks, created_at, updated_at
`

// Create inserts a loan together with its installment schedule in one
// transaction.
func (r *LoanRepository) Create(ctx context.Context, l *Loan, schedule []*ScheduleEntry) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = StatusActive
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO loans (
				id, employee_id, principal, annual_interest_rate, emi_count,
				emi_amount, total_amount, start_month, start_year, paid_emi_count,
				remaining_balance, status, remarks
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			l.ID, l.EmployeeID, l.Principal, l.AnnualInterestRate, l.EMICount,
			l.EMIAmount, l.TotalAmount, l.StartMonth, l.StartYear, l.PaidEMICount,
			l.RemainingBalance, l.Status, l.Remarks,
		).Scan(&l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return err
		}

		for _, e := range schedule {
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			e.LoanID = l.ID
			if e.Status == "" {
				e.Status = InstallmentPending
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO loan_schedule (id, loan_id, sequence, month, year, amount, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.ID, e.LoanID, e.Sequence, e.Month, e.Year, e.Amount, e.Status)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID gets a loan by id.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*Loan, error) {
	var l Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	err := r.db.GetContext(ctx, &l, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("loan")
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetSchedule returns a loan's installments in sequence order.
func (r *LoanRepository) GetSchedule(ctx context.Context, loanID string) ([]*ScheduleEntry, error) {
	var schedule []*ScheduleEntry
	query := `SELECT id, loan_id, sequence, month, year, amount, status FROM loan_schedule WHERE loan_id = $1 ORDER BY sequence`
	if err := r.db.SelectContext(ctx, &schedule, query, loanID); err != nil {
		return nil, err
	}
	return schedule, nil
}

// List lists loans with filters.
func (r *LoanRepository) List(ctx context.Context, params ListParams) ([]*Loan, int64, error) {
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
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM loans "+where, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := fmt.Sprintf(`SELECT %s FROM loans %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		loanColumns, where, argNum, argNum+1)
	args = append(args, params.PerPage, offset)

	var loans []*Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// Cancel freezes an ACTIVE loan. Remaining balance stays as it was and
// future pay-runs skip the loan.
func (r *LoanRepository) Cancel(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, StatusCancelled, StatusActive)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		var status string
		err := r.db.GetContext(ctx, &status, `SELECT status FROM loans WHERE id = $1`, id)
		if err == sql.ErrNoRows {
			return apperr.NotFound("loan")
		}
		if err != nil {
			return err
		}
		return apperr.IllegalTransition(status, StatusCancelled)
	}
	return nil
}

// Delete removes a loan with no repayments recorded.
func (r *LoanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM loans WHERE id = $1 AND paid_emi_count = 0`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, id); err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("loan has repayments recorded")
		}
		return apperr.NotFound("loan")
	}
	return nil
}

// ListDueTx returns an employee's loans due for an EMI inside a pay-run
// transaction: ACTIVE, started at or before the run period, installments
// outstanding. Oldest loans first.
func (r *LoanRepository) ListDueTx(ctx context.Context, tx *sqlx.Tx, employeeID string, p period.Period) ([]*Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE employee_id = $1
		  AND status = $2
		  AND (start_year * 12 + start_month - 1) <= $3
		  AND paid_emi_count < emi_count
		ORDER BY created_at
	`
	var loans []*Loan
	if err := tx.SelectContext(ctx, &loans, query, employeeID, StatusActive, p.Index()); err != nil {
		return nil, err
	}
	return loans, nil
}

// NextInstallmentTx returns the earliest pending installment of a loan.
func (r *LoanRepository) NextInstallmentTx(ctx context.Context, tx *sqlx.Tx, loanID string) (*ScheduleEntry, error) {
	var e ScheduleEntry
	query := `
		SELECT id, loan_id, sequence, month, year, amount, status
		FROM loan_schedule
		WHERE loan_id = $1 AND status = $2
		ORDER BY sequence
		LIMIT 1
	`
	err := tx.GetContext(ctx, &e, query, loanID, InstallmentPending)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("pending installment")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ApplyEMITx records one EMI payment inside the pay-run transaction:
// marks the installment paid, advances the paid count and remaining
// balance, and completes the loan on the final installment.
func (r *LoanRepository) ApplyEMITx(ctx context.Context, tx *sqlx.Tx, l *Loan, e *ScheduleEntry) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE loan_schedule SET status = $2 WHERE id = $1`, e.ID, InstallmentPaid)
	if err != nil {
		return err
	}

	l.PaidEMICount++
	l.RemainingBalance = l.RemainingBalance.Sub(e.Amount)
	if l.PaidEMICount >= l.EMICount {
		l.Status = StatusCompleted
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET paid_emi_count = $2, remaining_balance = $3, status = $4, updated_at = NOW() WHERE id = $1`,
		l.ID, l.PaidEMICount, l.RemainingBalance, l.Status)
	return err
}
