package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/events"
	"github.com/peopleops/hrms-backend/internal/loan/repository"
	"github.com/peopleops/hrms-backend/internal/loan/scheduler"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/money"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// LoanService handles employee loans and their repayment plans.
type LoanService struct {
	repo      *repository.LoanRepository
	recorder  *audit.Recorder
	publisher events.Publisher
	logger    *logger.Logger
}

// NewLoanService creates a new loan service
func NewLoanService(repo *repository.LoanRepository, recorder *audit.Recorder, publisher events.Publisher, log *logger.Logger) *LoanService {
	return &LoanService{
		repo:      repo,
		recorder:  recorder,
		publisher: publisher,
		logger:    log,
	}
}

// LoanRequest represents a loan creation request
type LoanRequest struct {
	EmployeeID         string          `json:"employee_id" validate:"required"`
	Principal          decimal.Decimal `json:"principal" validate:"required"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
	EMICount           int             `json:"emi_count" validate:"required,gt=0,lte=120"`
	StartPeriod        period.Period   `json:"start_period" validate:"required"`
	Remarks            string          `json:"remarks" validate:"omitempty,max=500"`
}

// View is the wire shape of a loan with its start period and derived
// schedule.
type View struct {
	*repository.Loan
	StartPeriod period.Period     `json:"start_period"`
	Schedule    []InstallmentView `json:"schedule,omitempty"`
}

// InstallmentView is one schedule row on the wire.
type InstallmentView struct {
	Sequence int             `json:"sequence"`
	Period   period.Period   `json:"period"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
}

func viewOf(l *repository.Loan, schedule []*repository.ScheduleEntry) *View {
	v := &View{Loan: l, StartPeriod: l.StartPeriod()}
	for _, e := range schedule {
		v.Schedule = append(v.Schedule, InstallmentView{
			Sequence: e.Sequence,
			Period:   e.Period(),
			Amount:   e.Amount,
			Status:   e.Status,
		})
	}
	return v
}

// Create computes the repayment plan and persists loan plus schedule.
func (s *LoanService) Create(ctx context.Context, req *LoanRequest) (*View, error) {
	plan, err := scheduler.Build(req.Principal, req.AnnualInterestRate, req.EMICount, req.StartPeriod)
	if err != nil {
		return nil, err
	}

	l := &repository.Loan{
		EmployeeID:         req.EmployeeID,
		Principal:          money.Round(req.Principal),
		AnnualInterestRate: req.AnnualInterestRate,
		EMICount:           req.EMICount,
		EMIAmount:          plan.EMIAmount,
		TotalAmount:        plan.TotalAmount,
		StartMonth:         int(req.StartPeriod.Month),
		StartYear:          req.StartPeriod.Year,
		RemainingBalance:   plan.TotalAmount,
		Status:             repository.StatusActive,
		Remarks:            req.Remarks,
	}

	schedule := make([]*repository.ScheduleEntry, 0, len(plan.Schedule))
	for _, inst := range plan.Schedule {
		schedule = append(schedule, &repository.ScheduleEntry{
			Sequence: inst.Sequence,
			Month:    int(inst.Period.Month),
			Year:     inst.Period.Year,
			Amount:   inst.Amount,
			Status:   repository.InstallmentPending,
		})
	}

	if err := s.repo.Create(ctx, l, schedule); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "loan", l.ID, map[string]string{
		"employee_id": l.EmployeeID,
		"principal":   l.Principal.String(),
		"emi_count":   decimal.NewFromInt(int64(l.EMICount)).String(),
	})

	return viewOf(l, schedule), nil
}

// Get returns a loan with its schedule.
func (s *LoanService) Get(ctx context.Context, id string) (*View, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(l, schedule), nil
}

// List lists loans without schedules.
func (s *LoanService) List(ctx context.Context, params repository.ListParams) ([]*View, int64, error) {
	loans, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, 0, len(loans))
	for _, l := range loans {
		views = append(views, viewOf(l, nil))
	}
	return views, total, nil
}

// Cancel freezes an ACTIVE loan's unpaid tail. Pay-runs skip cancelled
// loans; the remaining balance stays frozen.
func (s *LoanService) Cancel(ctx context.Context, id string) (*View, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "loan", id, map[string]string{"status": repository.StatusCancelled})
	return s.Get(ctx, id)
}

// Delete removes a loan with no repayments recorded.
func (s *LoanService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.ActionDelete, "loan", id, nil)
	return nil
}
