package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/employee/repository"
	"github.com/peopleops/hrms-backend/internal/events"
	"github.com/peopleops/hrms-backend/internal/payroll/calc"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/money"
)

// EmployeeService handles employee lifecycle and compensation.
type EmployeeService struct {
	repo      *repository.EmployeeRepository
	params    calc.Params
	recorder  *audit.Recorder
	publisher events.Publisher
	logger    *logger.Logger
}

// NewEmployeeService creates a new employee service
func NewEmployeeService(repo *repository.EmployeeRepository, params calc.Params, recorder *audit.Recorder, publisher events.Publisher, log *logger.Logger) *EmployeeService {
	return &EmployeeService{
		repo:      repo,
		params:    params,
		recorder:  recorder,
		publisher: publisher,
		logger:    log,
	}
}

// CompensationRequest carries the annual CTC and optional overrides.
// Omitted overrides fall back to the statutory defaults.
type CompensationRequest struct {
	CTC        decimal.Decimal  `json:"ctc" validate:"required"`
	HRAPercent *decimal.Decimal `json:"hra_percent,omitempty"`
	Conveyance *decimal.Decimal `json:"conveyance,omitempty"`
	Telephone  *decimal.Decimal `json:"telephone,omitempty"`
	Medical    *decimal.Decimal `json:"medical,omitempty"`
	IncludePF  bool             `json:"include_pf"`
	IncludeESI bool             `json:"include_esi"`
	TDSAnnual  decimal.Decimal  `json:"tds_annual"`
}

// CreateEmployeeRequest represents an employee creation request
type CreateEmployeeRequest struct {
	FirstName        string              `json:"first_name" validate:"required,max=100"`
	LastName         string              `json:"last_name" validate:"required,max=100"`
	DateOfBirth      *time.Time          `json:"date_of_birth,omitempty"`
	Email            string              `json:"email" validate:"required,email"`
	Phone            string              `json:"phone" validate:"omitempty,max=20"`
	Address          string              `json:"address" validate:"omitempty,max=500"`
	EmploymentType   string              `json:"employment_type" validate:"required,oneof=FULL_TIME PART_TIME CONTRACT INTERN"`
	Department       string              `json:"department" validate:"required,max=100"`
	Designation      string              `json:"designation" validate:"required,max=100"`
	ReportingManager string              `json:"reporting_manager" validate:"omitempty,max=100"`
	JoinDate         time.Time           `json:"join_date" validate:"required"`
	WorkLocation     string              `json:"work_location" validate:"omitempty,max=100"`
	ProbationMonths  int                 `json:"probation_months" validate:"gte=0,lte=24"`
	BankName         string              `json:"bank_name" validate:"omitempty,max=100"`
	BankAccount      string              `json:"bank_account" validate:"omitempty,max=34"`
	BankIFSC         string              `json:"bank_ifsc" validate:"omitempty,max=11"`
	Compensation     CompensationRequest `json:"compensation" validate:"required"`
}

// UpdateEmployeeRequest represents an employee update request. A nil
// compensation block leaves the stored decomposition untouched.
type UpdateEmployeeRequest struct {
	FirstName        string               `json:"first_name" validate:"required,max=100"`
	LastName         string               `json:"last_name" validate:"required,max=100"`
	DateOfBirth      *time.Time           `json:"date_of_birth,omitempty"`
	Email            string               `json:"email" validate:"required,email"`
	Phone            string               `json:"phone" validate:"omitempty,max=20"`
	Address          string               `json:"address" validate:"omitempty,max=500"`
	EmploymentType   string               `json:"employment_type" validate:"required,oneof=FULL_TIME PART_TIME CONTRACT INTERN"`
	Department       string               `json:"department" validate:"required,max=100"`
	Designation      string               `json:"designation" validate:"required,max=100"`
	ReportingManager string               `json:"reporting_manager" validate:"omitempty,max=100"`
	JoinDate         time.Time            `json:"join_date" validate:"required"`
	WorkLocation     string               `json:"work_location" validate:"omitempty,max=100"`
	ProbationMonths  int                  `json:"probation_months" validate:"gte=0,lte=24"`
	BankName         string               `json:"bank_name" validate:"omitempty,max=100"`
	BankAccount      string               `json:"bank_account" validate:"omitempty,max=34"`
	BankIFSC         string               `json:"bank_ifsc" validate:"omitempty,max=11"`
	Status           string               `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
	Compensation     *CompensationRequest `json:"compensation,omitempty"`
}

func (s *EmployeeService) decompose(req *CompensationRequest) (*calc.Breakdown, error) {
	return calc.Decompose(calc.Input{
		CTC:        req.CTC,
		HRAPercent: req.HRAPercent,
		Conveyance: req.Conveyance,
		Telephone:  req.Telephone,
		Medical:    req.Medical,
		IncludePF:  req.IncludePF,
		IncludeESI: req.IncludeESI,
		TDSAnnual:  req.TDSAnnual,
	}, s.params)
}

func applyBreakdown(emp *repository.Employee, req *CompensationRequest, b *calc.Breakdown) {
	emp.CTC = money.Round(req.CTC)
	emp.HRAPercent = b.HRAPercent
	emp.IncludePF = req.IncludePF
	emp.IncludeESI = req.IncludeESI
	emp.TDSAnnual = money.Round(req.TDSAnnual)
	emp.Basic = b.Basic
	emp.HRA = b.HRA
	emp.Conveyance = b.Conveyance
	emp.Telephone = b.Telephone
	emp.Medical = b.Medical
	emp.SpecialAllowance = b.SpecialAllowance
	emp.Gross = b.Gross
	emp.PFEmployee = b.PFEmployee
	emp.PFEmployer = b.PFEmployer
	emp.ESIEmployee = b.ESIEmployee
	emp.ESIEmployer = b.ESIEmployer
	emp.ProfessionalTax = b.ProfessionalTax
	emp.TDSMonthly = b.TDSMonthly
	emp.Net = b.Net
}

// Create registers a new employee with a computed compensation breakdown.
func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*repository.Employee, error) {
	if req.JoinDate.After(time.Now()) {
		return nil, apperr.InvalidInput("join date must not be in the future").WithField("join_date", "must not be after today")
	}
	if req.Compensation.TDSAnnual.IsNegative() {
		return nil, apperr.InvalidInput("annual TDS must not be negative").WithField("compensation.tds_annual", "must be >= 0")
	}

	breakdown, err := s.decompose(&req.Compensation)
	if err != nil {
		return nil, err
	}

	emp := &repository.Employee{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		DateOfBirth:      req.DateOfBirth,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmploymentType:   req.EmploymentType,
		Department:       req.Department,
		Designation:      req.Designation,
		ReportingManager: req.ReportingManager,
		JoinDate:         req.JoinDate,
		WorkLocation:     req.WorkLocation,
		ProbationMonths:  req.ProbationMonths,
		BankName:         req.BankName,
		BankAccount:      req.BankAccount,
		BankIFSC:         req.BankIFSC,
		Status:           repository.StatusActive,
	}
	applyBreakdown(emp, &req.Compensation, breakdown)

	if err := s.repo.Create(ctx, emp); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "employee", emp.PublicID, map[string]string{
		"public_id":  emp.PublicID,
		"email":      emp.Email,
		"department": emp.Department,
	})
	s.publisher.Publish(ctx, events.EmployeeCreated, map[string]string{
		"public_id": emp.PublicID,
	})

	return emp, nil
}

// Get returns an employee by public id.
func (s *EmployeeService) Get(ctx context.Context, publicID string) (*repository.Employee, error) {
	return s.repo.GetByPublicID(ctx, publicID)
}

// List lists employees with filters and pagination.
func (s *EmployeeService) List(ctx context.Context, params repository.ListParams) ([]*repository.Employee, int64, error) {
	return s.repo.List(ctx, params)
}

// Update replaces an employee's profile and, when a compensation block is
// supplied, recomputes the stored decomposition.
func (s *EmployeeService) Update(ctx context.Context, publicID string, req *UpdateEmployeeRequest) (*repository.Employee, error) {
	if req.JoinDate.After(time.Now()) {
		return nil, apperr.InvalidInput("join date must not be in the future").WithField("join_date", "must not be after today")
	}

	emp, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	emp.FirstName = req.FirstName
	emp.LastName = req.LastName
	emp.DateOfBirth = req.DateOfBirth
	emp.Email = req.Email
	emp.Phone = req.Phone
	emp.Address = req.Address
	emp.EmploymentType = req.EmploymentType
	emp.Department = req.Department
	emp.Designation = req.Designation
	emp.ReportingManager = req.ReportingManager
	emp.JoinDate = req.JoinDate
	emp.WorkLocation = req.WorkLocation
	emp.ProbationMonths = req.ProbationMonths
	emp.BankName = req.BankName
	emp.BankAccount = req.BankAccount
	emp.BankIFSC = req.BankIFSC
	emp.Status = req.Status

	if req.Compensation != nil {
		if req.Compensation.TDSAnnual.IsNegative() {
			return nil, apperr.InvalidInput("annual TDS must not be negative").WithField("compensation.tds_annual", "must be >= 0")
		}
		breakdown, err := s.decompose(req.Compensation)
		if err != nil {
			return nil, err
		}
		applyBreakdown(emp, req.Compensation, breakdown)
	}

	if err := s.repo.Update(ctx, emp); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "employee", emp.PublicID, map[string]string{
		"public_id": emp.PublicID,
		"status":    emp.Status,
	})
	s.publisher.Publish(ctx, events.EmployeeUpdated, map[string]string{
		"public_id": emp.PublicID,
	})

	return emp, nil
}

// Delete removes an employee. Deletion is refused while payroll, leave,
// loan, advance or attendance records reference the employee; such
// employees are deactivated through Update instead.
func (s *EmployeeService) Delete(ctx context.Context, publicID string) error {
	if _, err := s.repo.GetByPublicID(ctx, publicID); err != nil {
		return err
	}

	hasDeps, err := s.repo.HasDependents(ctx, publicID)
	if err != nil {
		return err
	}
	if hasDeps {
		return apperr.Conflict("employee has dependent records; deactivate instead of deleting")
	}

	if err := s.repo.Delete(ctx, publicID); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.ActionDelete, "employee", publicID, nil)
	return nil
}

// Preview computes a compensation breakdown without persisting anything.
func (s *EmployeeService) Preview(ctx context.Context, req *CompensationRequest) (*calc.Breakdown, error) {
	if req.TDSAnnual.IsNegative() {
		return nil, apperr.InvalidInput("annual TDS must not be negative").WithField("tds_annual", "must be >= 0")
	}
	return s.decompose(req)
}
