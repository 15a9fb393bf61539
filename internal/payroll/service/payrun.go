package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	advancerepo "github.com/peopleops/hrms-backend/internal/advance/repository"
	attendancerepo "github.com/peopleops/hrms-backend/internal/attendance/repository"
	"github.com/peopleops/hrms-backend/internal/audit"
	employeerepo "github.com/peopleops/hrms-backend/internal/employee/repository"
	"github.com/peopleops/hrms-backend/internal/events"
	loanrepo "github.com/peopleops/hrms-backend/internal/loan/repository"
	"github.com/peopleops/hrms-backend/internal/payroll/calc"
	"github.com/peopleops/hrms-backend/internal/payroll/repository"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/money"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// PayRunService generates and serves monthly pay-runs.
type PayRunService struct {
	db             *database.DB
	payruns        *repository.PayRunRepository
	employees      *employeerepo.EmployeeRepository
	attendance     *attendancerepo.AttendanceRepository
	loans          *loanrepo.LoanRepository
	advances       *advancerepo.AdvanceRepository
	params         calc.Params
	defaultDays    int
	partialAllowed bool
	recorder       *audit.Recorder
	publisher      events.Publisher
	logger         *logger.Logger
}

// NewPayRunService creates a new pay-run service
func NewPayRunService(
	db *database.DB,
	payruns *repository.PayRunRepository,
	employees *employeerepo.EmployeeRepository,
	attendance *attendancerepo.AttendanceRepository,
	loans *loanrepo.LoanRepository,
	advances *advancerepo.AdvanceRepository,
	params calc.Params,
	cfg *config.PayrollConfig,
	recorder *audit.Recorder,
	publisher events.Publisher,
	log *logger.Logger,
) *PayRunService {
	return &PayRunService{
		db:             db,
		payruns:        payruns,
		employees:      employees,
		attendance:     attendance,
		loans:          loans,
		advances:       advances,
		params:         params,
		defaultDays:    cfg.DefaultWorkingDays,
		partialAllowed: cfg.PartialAdvances,
		recorder:       recorder,
		publisher:      publisher,
		logger:         log,
	}
}

// GenerateRequest names the period to generate.
type GenerateRequest struct {
	Period period.Period `json:"period" validate:"required"`
}

// View is the wire shape of a pay-run with its period and, when loaded,
// its line items.
type View struct {
	*repository.PayRun
	Period period.Period      `json:"period"`
	Items  []*repository.Item `json:"items,omitempty"`
}

func viewOf(run *repository.PayRun, items []*repository.Item) *View {
	return &View{PayRun: run, Period: run.Period(), Items: items}
}

// generationFailed wraps a per-employee failure; the whole run aborts.
func generationFailed(employeeID string, err error) error {
	var appErr *apperr.Error
	if apperr.As(err, &appErr) {
		return apperr.DomainRule(fmt.Sprintf("pay-run generation failed for employee %s: %s", employeeID, appErr.Message))
	}
	return apperr.DomainRule(fmt.Sprintf("pay-run generation failed for employee %s", employeeID))
}

// Generate computes the pay-run for one period inside a single
// transaction. A second run for the same period loses on the unique
// period key with Conflict and nothing persists on any per-employee
// failure.
func (s *PayRunService) Generate(ctx context.Context, req *GenerateRequest) (*View, error) {
	if req.Period.IsZero() {
		return nil, apperr.InvalidInput("period is required").WithField("period", "required")
	}

	run := &repository.PayRun{
		Month:           int(req.Period.Month),
		Year:            req.Period.Year,
		GeneratedBy:     actorOf(ctx),
		TotalGross:      money.Zero,
		TotalDeductions: money.Zero,
		TotalNet:        money.Zero,
	}

	var items []*repository.Item
	var completedLoans []string
	var deductedAdvances []string

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.payruns.CreateTx(ctx, tx, run); err != nil {
			return err
		}

		employees, err := s.employees.ListActiveTx(ctx, tx)
		if err != nil {
			return err
		}

		for _, emp := range employees {
			item, completed, deducted, err := s.generateLine(ctx, tx, run, emp, req.Period)
			if err != nil {
				return generationFailed(emp.PublicID, err)
			}
			if err := s.payruns.InsertItemTx(ctx, tx, item); err != nil {
				return generationFailed(emp.PublicID, err)
			}

			items = append(items, item)
			completedLoans = append(completedLoans, completed...)
			deductedAdvances = append(deductedAdvances, deducted...)
			run.EmployeeCount++
			run.TotalGross = run.TotalGross.Add(item.Gross)
			run.TotalDeductions = run.TotalDeductions.Add(item.Gross.Sub(item.NetPay))
			run.TotalNet = run.TotalNet.Add(item.NetPay)
		}

		return s.payruns.UpdateTotalsTx(ctx, tx, run)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "payrun", run.ID, map[string]string{
		"period":    req.Period.String(),
		"employees": fmt.Sprintf("%d", run.EmployeeCount),
	})
	s.publisher.Publish(ctx, events.PayRunGenerated, map[string]string{
		"payrun_id": run.ID,
		"period":    req.Period.String(),
	})
	for _, loanID := range completedLoans {
		s.publisher.Publish(ctx, events.LoanCompleted, map[string]string{"loan_id": loanID})
	}
	for _, advanceID := range deductedAdvances {
		s.publisher.Publish(ctx, events.AdvanceDeducted, map[string]string{"advance_id": advanceID})
	}

	return viewOf(run, items), nil
}

func actorOf(ctx context.Context) string {
	if username := httputil.GetUsername(ctx); username != "" {
		return username
	}
	return "system"
}

// generateLine computes one employee's line: prorate by attendance,
// recompute statutory deductions on the prorated figures, then apply
// loan EMIs before advance recoveries.
func (s *PayRunService) generateLine(ctx context.Context, tx *sqlx.Tx, run *repository.PayRun, emp *employeerepo.Employee, p period.Period) (*repository.Item, []string, []string, error) {
	workingDays := s.defaultDays
	payableDays := s.defaultDays

	rec, err := s.attendance.GetByPeriodTx(ctx, tx, emp.PublicID, p)
	switch {
	case err == nil:
		workingDays = rec.TotalWorkingDays
		payableDays = rec.PayableDays
		if err := s.attendance.MarkConsumedTx(ctx, tx, rec.ID); err != nil {
			return nil, nil, nil, err
		}
	case apperr.Is(err, apperr.ErrNotFound):
		// No attendance filed: assume full attendance.
	default:
		return nil, nil, nil, err
	}

	if workingDays <= 0 {
		return nil, nil, nil, apperr.DomainRule("attendance has zero working days")
	}

	factor := decimal.NewFromInt(int64(payableDays)).Div(decimal.NewFromInt(int64(workingDays)))
	prorate := func(d decimal.Decimal) decimal.Decimal {
		return money.Round(d.Mul(factor))
	}

	basic := prorate(emp.Basic)
	gross := prorate(emp.Gross)

	pf := money.Zero
	if emp.IncludePF {
		pf = money.Percent(money.Min(basic, s.params.PFBaseCap), s.params.PFRate)
	}
	esi := money.Zero
	if emp.IncludeESI {
		esi = money.Percent(gross, s.params.ESIEmployeeRate)
	}
	pt := s.params.ProfessionalTaxFor(gross)
	tds := emp.TDSMonthly

	item := &repository.Item{
		PayRunID:         run.ID,
		EmployeeID:       emp.PublicID,
		EmployeeName:     emp.FirstName + " " + emp.LastName,
		WorkingDays:      workingDays,
		PayableDays:      payableDays,
		Basic:            basic,
		HRA:              prorate(emp.HRA),
		Conveyance:       prorate(emp.Conveyance),
		Telephone:        prorate(emp.Telephone),
		Medical:          prorate(emp.Medical),
		SpecialAllowance: prorate(emp.SpecialAllowance),
		Gross:            gross,
		PFDeduction:      pf,
		ESIDeduction:     esi,
		ProfessionalTax:  pt,
		TDSMonthly:       tds,
		LOPAmount:        emp.Gross.Sub(gross),
	}

	remaining := gross.Sub(pf).Sub(esi).Sub(pt).Sub(tds)

	loanEMI, completed, err := s.applyLoans(ctx, tx, emp.PublicID, p)
	if err != nil {
		return nil, nil, nil, err
	}
	item.LoanEMI = loanEMI
	remaining = remaining.Sub(loanEMI)

	advanceTotal, deducted, err := s.applyAdvances(ctx, tx, emp.PublicID, p, remaining)
	if err != nil {
		return nil, nil, nil, err
	}
	item.AdvanceDeduction = advanceTotal
	remaining = remaining.Sub(advanceTotal)

	item.NetPay = remaining
	return item, completed, deducted, nil
}

// applyLoans deducts one EMI from every due loan, oldest first, and
// returns the total plus ids of loans that just completed.
func (s *PayRunService) applyLoans(ctx context.Context, tx *sqlx.Tx, employeeID string, p period.Period) (decimal.Decimal, []string, error) {
	due, err := s.loans.ListDueTx(ctx, tx, employeeID, p)
	if err != nil {
		return money.Zero, nil, err
	}

	total := money.Zero
	var completed []string
	for _, l := range due {
		inst, err := s.loans.NextInstallmentTx(ctx, tx, l.ID)
		if err != nil {
			return money.Zero, nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		if err := s.loans.ApplyEMITx(ctx, tx, l, inst); err != nil {
			return money.Zero, nil, err
		}
		total = total.Add(inst.Amount)
		if l.Status == loanrepo.StatusCompleted {
			completed = append(completed, l.ID)
		}
	}
	return total, completed, nil
}

// applyAdvances recovers due advances, oldest deduction period first, and
// returns the total plus ids of the advances deducted from. With partial
// recovery enabled the deduction is capped by the pay still available;
// otherwise the full remaining amount is taken.
func (s *PayRunService) applyAdvances(ctx context.Context, tx *sqlx.Tx, employeeID string, p period.Period, available decimal.Decimal) (decimal.Decimal, []string, error) {
	due, err := s.advances.ListDueTx(ctx, tx, employeeID, p)
	if err != nil {
		return money.Zero, nil, err
	}

	total := money.Zero
	var deducted []string
	for _, a := range due {
		amount := a.RemainingAmount
		if s.partialAllowed {
			amount = money.Min(amount, money.ClampZero(available))
			if amount.IsZero() {
				continue
			}
		}

		newRemaining := a.RemainingAmount.Sub(amount)
		status := advancerepo.StatusPartial
		if newRemaining.IsZero() {
			status = advancerepo.StatusDeducted
		}
		if err := s.advances.ApplyDeductionTx(ctx, tx, a.ID, newRemaining, status); err != nil {
			return money.Zero, nil, err
		}

		total = total.Add(amount)
		deducted = append(deducted, a.ID)
		available = available.Sub(amount)
	}
	return total, deducted, nil
}

// Get returns a pay-run with its line items.
func (s *PayRunService) Get(ctx context.Context, id string) (*View, error) {
	run, err := s.payruns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.payruns.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(run, items), nil
}

// List lists pay-run headers.
func (s *PayRunService) List(ctx context.Context) ([]*View, error) {
	runs, err := s.payruns.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(runs))
	for _, run := range runs {
		views = append(views, viewOf(run, nil))
	}
	return views, nil
}
