package service

import (
	"context"

	"github.com/peopleops/hrms-backend/internal/attendance/repository"
	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// AttendanceService handles monthly attendance records.
type AttendanceService struct {
	repo     *repository.AttendanceRepository
	recorder *audit.Recorder
	logger   *logger.Logger
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(repo *repository.AttendanceRepository, recorder *audit.Recorder, log *logger.Logger) *AttendanceService {
	return &AttendanceService{
		repo:     repo,
		recorder: recorder,
		logger:   log,
	}
}

// UpsertRequest represents an attendance upsert keyed by
// (employee, month, year).
type UpsertRequest struct {
	EmployeeID       string        `json:"employee_id" validate:"required"`
	Period           period.Period `json:"period" validate:"required"`
	TotalWorkingDays int           `json:"total_working_days" validate:"gte=0,lte=31"`
	PresentDays      int           `json:"present_days" validate:"gte=0,lte=31"`
	AbsentDays       int           `json:"absent_days" validate:"gte=0,lte=31"`
	PaidLeave        int           `json:"paid_leave" validate:"gte=0,lte=31"`
	UnpaidLeave      int           `json:"unpaid_leave" validate:"gte=0,lte=31"`
	Remarks          string        `json:"remarks" validate:"omitempty,max=500"`
}

// View is the wire shape of a record, with the period in its
// (month-name, year-string) form.
type View struct {
	*repository.Record
	Period period.Period `json:"period"`
}

func viewOf(rec *repository.Record) *View {
	return &View{Record: rec, Period: rec.Period()}
}

func viewsOf(records []*repository.Record) []*View {
	views := make([]*View, 0, len(records))
	for _, rec := range records {
		views = append(views, viewOf(rec))
	}
	return views
}

// Upsert validates the day sums and inserts or replaces the record.
// payable-days and loss-of-pay-days are derived, never client-supplied.
func (s *AttendanceService) Upsert(ctx context.Context, req *UpsertRequest) (*View, error) {
	if req.Period.IsZero() {
		return nil, apperr.InvalidInput("period is required").WithField("period", "required")
	}
	if req.PresentDays+req.AbsentDays+req.PaidLeave+req.UnpaidLeave != req.TotalWorkingDays {
		return nil, apperr.DomainRule("attendance days do not sum to total working days")
	}

	rec := &repository.Record{
		EmployeeID:       req.EmployeeID,
		Month:            int(req.Period.Month),
		Year:             req.Period.Year,
		TotalWorkingDays: req.TotalWorkingDays,
		PresentDays:      req.PresentDays,
		AbsentDays:       req.AbsentDays,
		PaidLeave:        req.PaidLeave,
		UnpaidLeave:      req.UnpaidLeave,
		PayableDays:      req.PresentDays + req.PaidLeave,
		LossOfPayDays:    req.AbsentDays + req.UnpaidLeave,
		Remarks:          req.Remarks,
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "attendance", rec.ID, map[string]string{
		"employee_id": rec.EmployeeID,
		"period":      rec.Period().String(),
	})

	return viewOf(rec), nil
}

// Get returns a record by id.
func (s *AttendanceService) Get(ctx context.Context, id string) (*View, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(rec), nil
}

// List lists records with filters.
func (s *AttendanceService) List(ctx context.Context, params repository.ListParams) ([]*View, int64, error) {
	records, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return viewsOf(records), total, nil
}

// Delete removes a record that no pay-run has consumed.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.ActionDelete, "attendance", id, nil)
	return nil
}
