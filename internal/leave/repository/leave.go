package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/database"
)

// Leave statuses
const (
	StatusPending         = "PENDING"
	StatusManagerApproved = "MANAGER_APPROVED"
	StatusAdminApproved   = "ADMIN_APPROVED"
	StatusRejected        = "REJECTED"
	StatusCancelled       = "CANCELLED"
)

// LeaveRequest is a time-off request moving through the two-stage
// approval state machine.
type LeaveRequest struct {
	ID               string     `db:"id" json:"id"`
	EmployeeID       string     `db:"employee_id" json:"employee_id"`
	CreatedBy        string     `db:"created_by" json:"created_by"`
	LeaveType        string     `db:"leave_type" json:"leave_type"`
	StartDate        time.Time  `db:"start_date" json:"start_date"`
	EndDate          time.Time  `db:"end_date" json:"end_date"`
	Days             int        `db:"days" json:"days"`
	Reason           string     `db:"reason" json:"reason"`
	Status           string     `db:"status" json:"status"`
	ReportingManager string     `db:"reporting_manager" json:"reporting_manager"`
	Department       string     `db:"department" json:"department"`
	ManagerActor     *string    `db:"manager_actor" json:"manager_actor,omitempty"`
	ManagerAt        *time.Time `db:"manager_at" json:"manager_at,omitempty"`
	ManagerComments  *string    `db:"manager_comments" json:"manager_comments,omitempty"`
	AdminActor       *string    `db:"admin_actor" json:"admin_actor,omitempty"`
	AdminAt          *time.Time `db:"admin_at" json:"admin_at,omitempty"`
	AdminComments    *string    `db:"admin_comments" json:"admin_comments,omitempty"`
	RejectedBy       *string    `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt       *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ListParams holds parameters for listing leave requests
type ListParams struct {
	EmployeeID string
	Status     string
	Page       int
	PerPage    int
}

// LeaveRepository handles leave persistence
type LeaveRepository struct {
	db *database.DB
}

// NewLeaveRepository creates a new leave repository
func NewLeaveRepository(db *database.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

const leaveColumns = `
	id, employee_id, created_by, leave_type, start_date, end_date, days, reason,
	status, reporting_manager, department, manager_actor, manager_at,
	manager_comments, admin_actor, admin_at, admin_comments, rejected_by,
	rejected_at, rejection_reason, created_at, updated_at
`

// Create inserts a PENDING leave request.
func (r *LeaveRepository) Create(ctx context.Context, l *LeaveRequest) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = StatusPending
	}

	query := `
		INSERT INTO leave_requests (
			id, employee_id, created_by, leave_type, start_date, end_date, days,
			reason, status, reporting_manager, department
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		l.ID, l.EmployeeID, l.CreatedBy, l.LeaveType, l.StartDate, l.EndDate,
		l.Days, l.Reason, l.Status, l.ReportingManager, l.Department,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// GetByID gets a leave request by id.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	query := `SELECT ` + leaveColumns + ` FROM leave_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &l, query, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("leave request")
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// List lists leave requests with filters, newest first.
func (r *LeaveRepository) List(ctx context.Context, params ListParams) ([]*LeaveRequest, int64, error) {
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
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leave_requests "+where, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := fmt.Sprintf(`SELECT %s FROM leave_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leaveColumns, where, argNum, argNum+1)
	args = append(args, params.PerPage, offset)

	var leaves []*LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, 0, err
	}
	return leaves, total, nil
}

// OverlappingApproved returns ADMIN_APPROVED leaves for the employee
// intersecting [start, end], both ends inclusive.
func (r *LeaveRepository) OverlappingApproved(ctx context.Context, employeeID string, start, end time.Time) ([]*LeaveRequest, error) {
	query := `
		SELECT ` + leaveColumns + `
		FROM leave_requests
		WHERE employee_id = $1
		  AND status = $2
		  AND start_date <= $4
		  AND end_date >= $3
	`
	var leaves []*LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query, employeeID, StatusAdminApproved, start, end); err != nil {
		return nil, err
	}
	return leaves, nil
}

// Transition is the status-guarded state change. Zero rows affected
// means another writer got there first; callers map that to Conflict or
// IllegalStateTransition by re-reading.
func (r *LeaveRepository) Transition(ctx context.Context, l *LeaveRequest, from string) (bool, error) {
	query := `
		UPDATE leave_requests SET
			status = $3, manager_actor = $4, manager_at = $5, manager_comments = $6,
			admin_actor = $7, admin_at = $8, admin_comments = $9, rejected_by = $10,
			rejected_at = $11, rejection_reason = $12, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		l.ID, from, l.Status, l.ManagerActor, l.ManagerAt, l.ManagerComments,
		l.AdminActor, l.AdminAt, l.AdminComments, l.RejectedBy, l.RejectedAt,
		l.RejectionReason,
	)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
