package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// PayRun is the immutable snapshot of one month's payroll.
type PayRun struct {
	ID              string          `db:"id" json:"id"`
	Month           int             `db:"month" json:"-"`
	Year            int             `db:"year" json:"-"`
	GeneratedBy     string          `db:"generated_by" json:"generated_by"`
	EmployeeCount   int             `db:"employee_count" json:"employee_count"`
	TotalGross      decimal.Decimal `db:"total_gross" json:"total_gross"`
	TotalDeductions decimal.Decimal `db:"total_deductions" json:"total_deductions"`
	TotalNet        decimal.Decimal `db:"total_net" json:"total_net"`
	GeneratedAt     time.Time       `db:"generated_at" json:"generated_at"`
}

// Period returns the run's pay period.
func (p *PayRun) Period() period.Period {
	return period.New(time.Month(p.Month), p.Year)
}

// Item is one employee's line in a pay-run.
type Item struct {
	ID               string          `db:"id" json:"id"`
	PayRunID         string          `db:"payrun_id" json:"-"`
	EmployeeID       string          `db:"employee_id" json:"employee_id"`
	EmployeeName     string          `db:"employee_name" json:"employee_name"`
	WorkingDays      int             `db:"working_days" json:"working_days"`
	PayableDays      int             `db:"payable_days" json:"payable_days"`
	Basic            decimal.Decimal `db:"basic" json:"basic"`
	HRA              decimal.Decimal `db:"hra" json:"hra"`
	Conveyance       decimal.Decimal `db:"conveyance" json:"conveyance"`
	Telephone        decimal.Decimal `db:"telephone" json:"telephone"`
	Medical          decimal.Decimal `db:"medical" json:"medical"`
	SpecialAllowance decimal.Decimal `db:"special_allowance" json:"special_allowance"`
	Gross            decimal.Decimal `db:"gross" json:"gross"`
	PFDeduction      decimal.Decimal `db:"pf_deduction" json:"pf_deduction"`
	ESIDeduction     decimal.Decimal `db:"esi_deduction" json:"esi_deduction"`
	ProfessionalTax  decimal.Decimal `db:"professional_tax" json:"professional_tax"`
	TDSMonthly       decimal.Decimal `db:"tds_monthly" json:"tds_monthly"`
	LoanEMI          decimal.Decimal `db:"loan_emi" json:"loan_emi"`
	AdvanceDeduction decimal.Decimal `db:"advance_deduction" json:"advance_deduction"`
	LOPAmount        decimal.Decimal `db:"lop_amount" json:"lop_amount"`
	NetPay           decimal.Decimal `db:"net_pay" json:"net"`
}

// PayRunRepository handles pay-run persistence
type PayRunRepository struct {
	db *database.DB
}

// NewPayRunRepository creates a new pay-run repository
func NewPayRunRepository(db *database.DB) *PayRunRepository {
	return &PayRunRepository{db: db}
}

const payrunColumns = `
	id, month, year, generated_by, employee_count, total_gross,
	total_deductions, total_net, generated_at
`

const itemColumns = `
	id, payrun_id, employee_id, employee_name, working_days, payable_days,
	basic, hra, conveyance, telephone, medical, special_allowance, gross,
	pf_deduction, esi_deduction, professional_tax, tds_monthly, loan_emi,
	advance_deduction, lop_amount, net_pay
`

// CreateTx inserts the run header inside the generation transaction. The
// unique (month, year) key makes concurrent generators lose with
// Conflict.
func (r *PayRunRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, run *PayRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO payruns (id, month, year, generated_by, employee_count,
			total_gross, total_deductions, total_net)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING generated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		run.ID, run.Month, run.Year, run.GeneratedBy, run.EmployeeCount,
		run.TotalGross, run.TotalDeductions, run.TotalNet,
	).Scan(&run.GeneratedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("a pay-run for this period already exists")
	}
	return err
}

// UpdateTotalsTx writes the aggregate totals once all lines are in.
func (r *PayRunRepository) UpdateTotalsTx(ctx context.Context, tx *sqlx.Tx, run *PayRun) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payruns SET employee_count = $2, total_gross = $3, total_deductions = $4, total_net = $5 WHERE id = $1`,
		run.ID, run.EmployeeCount, run.TotalGross, run.TotalDeductions, run.TotalNet)
	return err
}

// InsertItemTx inserts one line item inside the generation transaction.
func (r *PayRunRepository) InsertItemTx(ctx context.Context, tx *sqlx.Tx, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO payrun_items (
			id, payrun_id, employee_id, employee_name, working_days, payable_days,
			basic, hra, conveyance, telephone, medical, special_allowance, gross,
			pf_deduction, esi_deduction, professional_tax, tds_monthly, loan_emi,
			advance_deduction, lop_amount, net_pay
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
	`
	_, err := tx.ExecContext(ctx, query,
		item.ID, item.PayRunID, item.EmployeeID, item.EmployeeName,
		item.WorkingDays, item.PayableDays, item.Basic, item.HRA, item.Conveyance,
		item.Telephone, item.Medical, item.SpecialAllowance, item.Gross,
		item.PFDeduction, item.ESIDeduction, item.ProfessionalTax, item.TDSMonthly,
		item.LoanEMI, item.AdvanceDeduction, item.LOPAmount, item.NetPay,
	)
	return err
}

// GetByID gets a pay-run header by id.
func (r *PayRunRepository) GetByID(ctx context.Context, id string) (*PayRun, error) {
	var run PayRun
	query := `SELECT ` + payrunColumns + ` FROM payruns WHERE id = $1`
	err := r.db.GetContext(ctx, &run, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("pay-run")
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List lists pay-runs, newest period first.
func (r *PayRunRepository) List(ctx context.Context) ([]*PayRun, error) {
	var runs []*PayRun
	query := `SELECT ` + payrunColumns + ` FROM payruns ORDER BY year DESC, month DESC`
	if err := r.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListItems returns a run's line items in employee public-id order.
func (r *PayRunRepository) ListItems(ctx context.Context, payrunID string) ([]*Item, error) {
	var items []*Item
	query := `SELECT ` + itemColumns + ` FROM payrun_items WHERE payrun_id = $1 ORDER BY employee_id ASC`
	if err := r.db.SelectContext(ctx, &items, query, payrunID); err != nil {
		return nil, err
	}
	return items, nil
}
