package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/events"
	"github.com/peopleops/hrms-backend/internal/leave/repository"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// lockStripes is the size of the per-employee mutex table. Overlap checks
// and state transitions for one employee serialize on the same stripe.
const lockStripes = 64

// LeaveService runs the two-stage leave approval state machine.
type LeaveService struct {
	repo      *repository.LeaveRepository
	recorder  *audit.Recorder
	publisher events.Publisher
	logger    *logger.Logger
	locks     [lockStripes]sync.Mutex
}

// NewLeaveService creates a new leave service
func NewLeaveService(repo *repository.LeaveRepository, recorder *audit.Recorder, publisher events.Publisher, log *logger.Logger) *LeaveService {
	return &LeaveService{
		repo:      repo,
		recorder:  recorder,
		publisher: publisher,
		logger:    log,
	}
}

func (s *LeaveService) lockFor(employeeID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(employeeID))
	return &s.locks[h.Sum32()%lockStripes]
}

// CreateLeaveRequest represents a leave creation request
type CreateLeaveRequest struct {
	EmployeeID       string    `json:"employee_id" validate:"required"`
	LeaveType        string    `json:"leave_type" validate:"required,oneof=CASUAL SICK EARNED UNPAID"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	EndDate          time.Time `json:"end_date" validate:"required"`
	Reason           string    `json:"reason" validate:"required,min=10,max=1000"`
	ReportingManager string    `json:"reporting_manager" validate:"omitempty,max=100"`
	Department       string    `json:"department" validate:"omitempty,max=100"`
}

// DecisionRequest carries approval comments or a rejection reason.
type DecisionRequest struct {
	Comments string `json:"comments" validate:"required,min=5,max=500"`
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// inclusiveDays counts calendar days with both endpoints included.
func inclusiveDays(start, end time.Time) int {
	return int(dateOnly(end).Sub(dateOnly(start)).Hours()/24) + 1
}

// Create files a PENDING leave request. The start date must be strictly
// in the future and the interval must not touch any ADMIN_APPROVED leave
// for the employee; the overlap check runs under the employee's stripe
// lock.
func (s *LeaveService) Create(ctx context.Context, req *CreateLeaveRequest) (*repository.LeaveRequest, error) {
	start := dateOnly(req.StartDate)
	end := dateOnly(req.EndDate)
	today := dateOnly(time.Now().UTC())

	if !start.After(today) {
		return nil, apperr.InvalidInput("start date must be in the future").WithField("start_date", "must be after today")
	}
	if end.Before(start) {
		return nil, apperr.InvalidInput("end date precedes start date").WithField("end_date", "must be on or after start_date")
	}

	mu := s.lockFor(req.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	overlapping, err := s.repo.OverlappingApproved(ctx, req.EmployeeID, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		o := overlapping[0]
		return nil, apperr.InvalidInput(fmt.Sprintf(
			"requested range overlaps an approved leave from %s to %s",
			o.StartDate.Format("2006-01-02"), o.EndDate.Format("2006-01-02")))
	}

	l := &repository.LeaveRequest{
		EmployeeID:       req.EmployeeID,
		CreatedBy:        httputil.GetUsername(ctx),
		LeaveType:        req.LeaveType,
		StartDate:        start,
		EndDate:          end,
		Days:             inclusiveDays(start, end),
		Reason:           req.Reason,
		Status:           repository.StatusPending,
		ReportingManager: req.ReportingManager,
		Department:       req.Department,
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "leave", l.ID, map[string]string{
		"employee_id": l.EmployeeID,
		"start_date":  start.Format("2006-01-02"),
		"end_date":    end.Format("2006-01-02"),
	})

	return l, nil
}

// canAccess allows the creator of the request and elevated roles.
func canAccess(ctx context.Context, l *repository.LeaveRequest) bool {
	if httputil.HasRole(ctx, "ADMIN") || httputil.HasRole(ctx, "MANAGER") || httputil.HasRole(ctx, "HR") {
		return true
	}
	return l.CreatedBy != "" && l.CreatedBy == httputil.GetUsername(ctx)
}

// Get returns a leave request, restricted to the owner or elevated
// roles.
func (s *LeaveService) Get(ctx context.Context, id string) (*repository.LeaveRequest, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(ctx, l) {
		return nil, apperr.Forbidden("not allowed to view this leave request")
	}
	return l, nil
}

// ListByEmployee lists an employee's leave requests, restricted to the
// owner or elevated roles.
func (s *LeaveService) ListByEmployee(ctx context.Context, employeeID string, params repository.ListParams) ([]*repository.LeaveRequest, int64, error) {
	params.EmployeeID = employeeID
	leaves, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if len(leaves) > 0 && !canAccess(ctx, leaves[0]) {
		return nil, 0, apperr.Forbidden("not allowed to view these leave requests")
	}
	return leaves, total, nil
}

// transition applies a guarded state change under the employee stripe
// lock. A lost race against a writer that reached the same target state
// surfaces as Conflict; any other occupied state surfaces as
// IllegalStateTransition. A non-nil guard runs inside the lock before
// the state change.
func (s *LeaveService) transition(ctx context.Context, id, from string, guard func(*repository.LeaveRequest) error, mutate func(*repository.LeaveRequest)) (*repository.LeaveRequest, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(l.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read inside the lock; the first read raced other writers.
	l, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if guard != nil {
		if err := guard(l); err != nil {
			return nil, err
		}
	}

	current := l.Status
	mutate(l)
	target := l.Status

	if current != from {
		if current == target {
			return nil, apperr.Conflict("leave request was already decided")
		}
		return nil, apperr.IllegalTransition(current, target)
	}

	ok, err := s.repo.Transition(ctx, l, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		latest, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.Status == target {
			return nil, apperr.Conflict("leave request was already decided")
		}
		return nil, apperr.IllegalTransition(latest.Status, target)
	}
	return l, nil
}

// ManagerApprove moves PENDING to MANAGER_APPROVED.
func (s *LeaveService) ManagerApprove(ctx context.Context, id string, req *DecisionRequest) (*repository.LeaveRequest, error) {
	actor := httputil.GetUsername(ctx)
	now := time.Now().UTC()

	l, err := s.transition(ctx, id, repository.StatusPending, nil, func(l *repository.LeaveRequest) {
		l.Status = repository.StatusManagerApproved
		l.ManagerActor = &actor
		l.ManagerAt = &now
		l.ManagerComments = &req.Comments
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "leave", l.ID, map[string]string{"status": l.Status})
	return l, nil
}

// AdminApprove moves MANAGER_APPROVED to the terminal ADMIN_APPROVED.
// The overlap invariant is re-checked under the lock so two pending
// requests for intersecting ranges cannot both be granted.
func (s *LeaveService) AdminApprove(ctx context.Context, id string, req *DecisionRequest) (*repository.LeaveRequest, error) {
	actor := httputil.GetUsername(ctx)
	now := time.Now().UTC()

	guard := func(l *repository.LeaveRequest) error {
		overlapping, err := s.repo.OverlappingApproved(ctx, l.EmployeeID, l.StartDate, l.EndDate)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return apperr.DomainRule("requested range overlaps an approved leave")
		}
		return nil
	}

	l, err := s.transition(ctx, id, repository.StatusManagerApproved, guard, func(l *repository.LeaveRequest) {
		l.Status = repository.StatusAdminApproved
		l.AdminActor = &actor
		l.AdminAt = &now
		l.AdminComments = &req.Comments
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "leave", l.ID, map[string]string{"status": l.Status})
	s.publisher.Publish(ctx, events.LeaveApproved, map[string]string{
		"leave_id":    l.ID,
		"employee_id": l.EmployeeID,
	})
	return l, nil
}

// Reject moves PENDING or MANAGER_APPROVED to the terminal REJECTED.
// PENDING rejections need MANAGER or ADMIN; MANAGER_APPROVED rejections
// need ADMIN.
func (s *LeaveService) Reject(ctx context.Context, id string, req *DecisionRequest) (*repository.LeaveRequest, error) {
	actor := httputil.GetUsername(ctx)
	now := time.Now().UTC()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := current.Status
	switch from {
	case repository.StatusPending:
		if !httputil.HasRole(ctx, "MANAGER") && !httputil.HasRole(ctx, "ADMIN") {
			return nil, apperr.Forbidden("rejection requires MANAGER or ADMIN")
		}
	case repository.StatusManagerApproved:
		if !httputil.HasRole(ctx, "ADMIN") {
			return nil, apperr.Forbidden("rejecting a manager-approved leave requires ADMIN")
		}
	default:
		return nil, apperr.IllegalTransition(from, repository.StatusRejected)
	}

	l, err := s.transition(ctx, id, from, nil, func(l *repository.LeaveRequest) {
		l.Status = repository.StatusRejected
		l.RejectedBy = &actor
		l.RejectedAt = &now
		l.RejectionReason = &req.Comments
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "leave", l.ID, map[string]string{"status": l.Status})
	s.publisher.Publish(ctx, events.LeaveRejected, map[string]string{
		"leave_id":    l.ID,
		"employee_id": l.EmployeeID,
	})
	return l, nil
}

// Cancel moves PENDING or MANAGER_APPROVED to the terminal CANCELLED.
// Allowed to the request's creator and to MANAGER, ADMIN and HR.
func (s *LeaveService) Cancel(ctx context.Context, id string) (*repository.LeaveRequest, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(ctx, current) {
		return nil, apperr.Forbidden("not allowed to cancel this leave request")
	}

	from := current.Status
	if from != repository.StatusPending && from != repository.StatusManagerApproved {
		return nil, apperr.IllegalTransition(from, repository.StatusCancelled)
	}

	l, err := s.transition(ctx, id, from, nil, func(l *repository.LeaveRequest) {
		l.Status = repository.StatusCancelled
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "leave", l.ID, map[string]string{"status": l.Status})
	return l, nil
}
