package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/internal/advance/repository"
	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/money"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// AdvanceService handles salary advances.
type AdvanceService struct {
	repo     *repository.AdvanceRepository
	recorder *audit.Recorder
	logger   *logger.Logger
}

// NewAdvanceService creates a new advance service
func NewAdvanceService(repo *repository.AdvanceRepository, recorder *audit.Recorder, log *logger.Logger) *AdvanceService {
	return &AdvanceService{
		repo:     repo,
		recorder: recorder,
		logger:   log,
	}
}

// AdvanceRequest represents an advance create or update request
type AdvanceRequest struct {
	EmployeeID      string          `json:"employee_id" validate:"required"`
	AdvancePeriod   period.Period   `json:"advance_period" validate:"required"`
	DeductionPeriod period.Period   `json:"deduction_period" validate:"required"`
	PaidAmount      decimal.Decimal `json:"paid_amount" validate:"required"`
	Remarks         string          `json:"remarks" validate:"omitempty,max=500"`
}

// View is the wire shape of an advance with periods in their
// (month-name, year-string) form.
type View struct {
	*repository.Advance
	AdvancePeriod   period.Period `json:"advance_period"`
	DeductionPeriod period.Period `json:"deduction_period"`
}

func viewOf(a *repository.Advance) *View {
	return &View{Advance: a, AdvancePeriod: a.AdvancePeriod(), DeductionPeriod: a.DeductionPeriod()}
}

func (s *AdvanceService) validate(req *AdvanceRequest) error {
	if req.AdvancePeriod.IsZero() || req.DeductionPeriod.IsZero() {
		return apperr.InvalidInput("advance and deduction periods are required")
	}
	if !req.PaidAmount.IsPositive() {
		return apperr.InvalidInput("paid amount must be positive").WithField("paid_amount", "must be > 0")
	}
	if req.DeductionPeriod.Before(req.AdvancePeriod) {
		return apperr.DomainRule("deduction period precedes the advance period")
	}
	return nil
}

// Create records a new PENDING advance with remaining = paid.
func (s *AdvanceService) Create(ctx context.Context, req *AdvanceRequest) (*View, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	paid := money.Round(req.PaidAmount)
	a := &repository.Advance{
		EmployeeID:      req.EmployeeID,
		AdvanceMonth:    int(req.AdvancePeriod.Month),
		AdvanceYear:     req.AdvancePeriod.Year,
		DeductionMonth:  int(req.DeductionPeriod.Month),
		DeductionYear:   req.DeductionPeriod.Year,
		PaidAmount:      paid,
		RemainingAmount: paid,
		Status:          repository.StatusPending,
		Remarks:         req.Remarks,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "advance", a.ID, map[string]string{
		"employee_id": a.EmployeeID,
		"paid_amount": a.PaidAmount.String(),
	})

	return viewOf(a), nil
}

// Get returns an advance by id.
func (s *AdvanceService) Get(ctx context.Context, id string) (*View, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(a), nil
}

// List lists advances with filters.
func (s *AdvanceService) List(ctx context.Context, params repository.ListParams) ([]*View, int64, error) {
	advances, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, 0, len(advances))
	for _, a := range advances {
		views = append(views, viewOf(a))
	}
	return views, total, nil
}

// Update replaces a PENDING advance. Pay-run-touched advances are
// immutable.
func (s *AdvanceService) Update(ctx context.Context, id string, req *AdvanceRequest) (*View, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != repository.StatusPending {
		return nil, apperr.Conflict("advance has pay-run deductions recorded")
	}

	paid := money.Round(req.PaidAmount)
	a.EmployeeID = req.EmployeeID
	a.AdvanceMonth = int(req.AdvancePeriod.Month)
	a.AdvanceYear = req.AdvancePeriod.Year
	a.DeductionMonth = int(req.DeductionPeriod.Month)
	a.DeductionYear = req.DeductionPeriod.Year
	a.PaidAmount = paid
	a.RemainingAmount = paid
	a.Remarks = req.Remarks

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "advance", a.ID, map[string]string{
		"employee_id": a.EmployeeID,
	})

	return viewOf(a), nil
}

// Delete removes a PENDING advance.
func (s *AdvanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.ActionDelete, "advance", id, nil)
	return nil
}
