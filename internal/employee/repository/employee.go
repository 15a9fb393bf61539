package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
)

// Employee statuses
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Compensation is the persisted monthly decomposition together with the
// inputs it was derived from.
type Compensation struct {
	CTC              decimal.Decimal `db:"ctc" json:"ctc"`
	HRAPercent       decimal.Decimal `db:"hra_percent" json:"hra_percent"`
	IncludePF        bool            `db:"include_pf" json:"include_pf"`
	IncludeESI       bool            `db:"include_esi" json:"include_esi"`
	TDSAnnual        decimal.Decimal `db:"tds_annual" json:"tds_annual"`
	Basic            decimal.Decimal `db:"basic" json:"basic"`
	HRA              decimal.Decimal `db:"hra" json:"hra"`
	Conveyance       decimal.Decimal `db:"conveyance" json:"conveyance"`
	Telephone        decimal.Decimal `db:"telephone" json:"telephone"`
	Medical          decimal.Decimal `db:"medical" json:"medical"`
	SpecialAllowance decimal.Decimal `db:"special_allowance" json:"special_allowance"`
	Gross            decimal.Decimal `db:"gross" json:"gross"`
	PFEmployee       decimal.Decimal `db:"pf_employee" json:"pf_deduction"`
	PFEmployer       decimal.Decimal `db:"pf_employer" json:"pf_employer"`
	ESIEmployee      decimal.Decimal `db:"esi_employee" json:"esi_deduction"`
	ESIEmployer      decimal.Decimal `db:"esi_employer" json:"esi_employer"`
	ProfessionalTax  decimal.Decimal `db:"professional_tax" json:"professional_tax"`
	TDSMonthly       decimal.Decimal `db:"tds_monthly" json:"tds_monthly"`
	Net              decimal.Decimal `db:"net_pay" json:"net"`
}

// Employee is the employee aggregate. Designation and reporting manager
// are string handles resolved lazily at read time; no structural cycles
// are persisted.
type Employee struct {
	ID               string     `db:"id" json:"id"`
	PublicID         string     `db:"public_id" json:"public_id"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Email            string     `db:"email" json:"email"`
	Phone            string     `db:"phone" json:"phone"`
	Address          string     `db:"address" json:"address"`
	EmploymentType   string     `db:"employment_type" json:"employment_type"`
	Department       string     `db:"department" json:"department"`
	Designation      string     `db:"designation" json:"designation"`
	ReportingManager string     `db:"reporting_manager" json:"reporting_manager"`
	JoinDate         time.Time  `db:"join_date" json:"join_date"`
	WorkLocation     string     `db:"work_location" json:"work_location"`
	ProbationMonths  int        `db:"probation_months" json:"probation_months"`
	BankName         string     `db:"bank_name" json:"bank_name"`
	BankAccount      string     `db:"bank_account" json:"bank_account"`
	BankIFSC         string     `db:"bank_ifsc" json:"bank_ifsc"`
	Status           string     `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	Compensation
}

const publicIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewPublicID generates an employee public id: "EMP" followed by eight
// upper-case alphanumerics.
func NewPublicID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for id generation
		panic(fmt.Sprintf("public id generation: %v", err))
	}
	for i, b := range buf {
		buf[i] = publicIDAlphabet[int(b)%len(publicIDAlphabet)]
	}
	return "EMP" + string(buf)
}

// ListParams holds parameters for listing employees
type ListParams struct {
	Status     string
	Department string
	Page       int
	PerPage    int
}

// EmployeeRepository handles employee persistence
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `
	id, public_id, first_name, last_name, date_of_birth, email, phone, address,
	employment_type, department, designation, reporting_manager, join_date,
	work_location, probation_months, bank_name, bank_account, bank_ifsc, status,
	ctc, hra_percent, include_pf, include_esi, tds_annual,
	basic, hra, conveyance, telephone, medical, special_allowance, gross,
	pf_employee, pf_employer, esi_employee, esi_employer, professional_tax,
	tds_monthly, net_pay, created_at, updated_at
`

// Create inserts an employee. Official email uniqueness is enforced by
// the store and surfaced as Conflict.
func (r *EmployeeRepository) Create(ctx context.Context, emp *Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}
	if emp.PublicID == "" {
		emp.PublicID = NewPublicID()
	}
	if emp.Status == "" {
		emp.Status = StatusActive
	}

	query := `
		INSERT INTO employees (
			id, public_id, first_name, last_name, date_of_birth, email, phone, address,
			employment_type, department, designation, reporting_manager, join_date,
			work_location, probation_months, bank_name, bank_account, bank_ifsc, status,
			ctc, hra_percent, include_pf, include_esi, tds_annual,
			basic, hra, conveyance, telephone, medical, special_allowance, gross,
			pf_employee, pf_employer, esi_employee, esi_employer, professional_tax,
			tds_monthly, net_pay
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38
		)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		emp.ID, emp.PublicID, emp.FirstName, emp.LastName, emp.DateOfBirth, emp.Email,
		emp.Phone, emp.Address, emp.EmploymentType, emp.Department, emp.Designation,
		emp.ReportingManager, emp.JoinDate, emp.WorkLocation, emp.ProbationMonths,
		emp.BankName, emp.BankAccount, emp.BankIFSC, emp.Status,
		emp.CTC, emp.HRAPercent, emp.IncludePF, emp.IncludeESI, emp.TDSAnnual,
		emp.Basic, emp.HRA, emp.Conveyance, emp.Telephone, emp.Medical,
		emp.SpecialAllowance, emp.Gross, emp.PFEmployee, emp.PFEmployer,
		emp.ESIEmployee, emp.ESIEmployer, emp.ProfessionalTax, emp.TDSMonthly, emp.Net,
	).Scan(&emp.CreatedAt, &emp.UpdatedAt)

	if mapped := database.MapPQError(err); mapped != nil {
		return apperr.Conflict("an employee with this email already exists")
	}
	return err
}

// GetByPublicID gets an employee by its public id.
func (r *EmployeeRepository) GetByPublicID(ctx context.Context, publicID string) (*Employee, error) {
	var emp Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE public_id = $1`
	err := r.db.GetContext(ctx, &emp, query, publicID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// List lists employees with filters, ordered by public id.
func (r *EmployeeRepository) List(ctx context.Context, params ListParams) ([]*Employee, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if params.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, params.Status)
		argNum++
	}
	if params.Department != "" {
		where += fmt.Sprintf(" AND department = $%d", argNum)
		args = append(args, params.Department)
		argNum++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM employees "+where, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := fmt.Sprintf(`SELECT %s FROM employees %s ORDER BY public_id ASC LIMIT $%d OFFSET $%d`,
		employeeColumns, where, argNum, argNum+1)
	args = append(args, params.PerPage, offset)

	var employees []*Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// ListActive returns all active employees in ascending public-id order.
// Pay-run generation depends on this ordering.
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]*Employee, error) {
	var employees []*Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE status = $1 ORDER BY public_id ASC`
	if err := r.db.SelectContext(ctx, &employees, query, StatusActive); err != nil {
		return nil, err
	}
	return employees, nil
}

// ListActiveTx is ListActive inside a pay-run transaction so the run
// sees one consistent snapshot of the register.
func (r *EmployeeRepository) ListActiveTx(ctx context.Context, tx *sqlx.Tx) ([]*Employee, error) {
	var employees []*Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE status = $1 ORDER BY public_id ASC`
	if err := tx.SelectContext(ctx, &employees, query, StatusActive); err != nil {
		return nil, err
	}
	return employees, nil
}

// Update updates an employee in place.
func (r *EmployeeRepository) Update(ctx context.Context, emp *Employee) error {
	query := `
		UPDATE employees SET
			first_name = $2, last_name = $3, date_of_birth = $4, email = $5, phone = $6,
			address = $7, employment_type = $8, department = $9, designation = $10,
			reporting_manager = $11, join_date = $12, work_location = $13,
			probation_months = $14, bank_name = $15, bank_account = $16, bank_ifsc = $17,
			status = $18,
			ctc = $19, hra_percent = $20, include_pf = $21, include_esi = $22,
			tds_annual = $23, basic = $24, hra = $25, conveyance = $26, telephone = $27,
			medical = $28, special_allowance = $29, gross = $30, pf_employee = $31,
			pf_employer = $32, esi_employee = $33, esi_employer = $34,
			professional_tax = $35, tds_monthly = $36, net_pay = $37,
			updated_at = NOW()
		WHERE public_id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		emp.PublicID, emp.FirstName, emp.LastName, emp.DateOfBirth, emp.Email, emp.Phone,
		emp.Address, emp.EmploymentType, emp.Department, emp.Designation,
		emp.ReportingManager, emp.JoinDate, emp.WorkLocation, emp.ProbationMonths,
		emp.BankName, emp.BankAccount, emp.BankIFSC, emp.Status,
		emp.CTC, emp.HRAPercent, emp.IncludePF, emp.IncludeESI, emp.TDSAnnual,
		emp.Basic, emp.HRA, emp.Conveyance, emp.Telephone, emp.Medical,
		emp.SpecialAllowance, emp.Gross, emp.PFEmployee, emp.PFEmployer,
		emp.ESIEmployee, emp.ESIEmployer, emp.ProfessionalTax, emp.TDSMonthly, emp.Net,
	)
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("employee")
	}
	return nil
}

// HasDependents reports whether payroll, attendance, loan, advance or
// leave records reference the employee.
func (r *EmployeeRepository) HasDependents(ctx context.Context, publicID string) (bool, error) {
	var count int
	query := `
		SELECT (SELECT COUNT(*) FROM attendance_records WHERE employee_id = $1)
		     + (SELECT COUNT(*) FROM advances WHERE employee_id = $1)
		     + (SELECT COUNT(*) FROM loans WHERE employee_id = $1)
		     + (SELECT COUNT(*) FROM leave_requests WHERE employee_id = $1)
		     + (SELECT COUNT(*) FROM payrun_items WHERE employee_id = $1)
	`
	if err := r.db.GetContext(ctx, &count, query, publicID); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes an employee. Callers must refuse deletion while
// dependent records exist.
func (r *EmployeeRepository) Delete(ctx context.Context, publicID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE public_id = $1`, publicID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperr.NotFound("employee")
	}
	return nil
}

// CountByDesignation counts employees holding a designation title.
// Designation deletion is refused while this is non-zero.
func (r *EmployeeRepository) CountByDesignation(ctx context.Context, title string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM employees WHERE designation = $1`, title)
	return count, err
}
