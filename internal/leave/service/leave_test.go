package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/events"
	"github.com/peopleops/hrms-backend/internal/leave/repository"
	"github.com/peopleops/hrms-backend/internal/leave/service"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/testutil"
)

type nopSink struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (s *nopSink) Create(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

type fixture struct {
	db        *testutil.MockDB
	svc       *service.LeaveService
	publisher *testutil.CapturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMockDB(t)
	publisher := &testutil.CapturePublisher{}
	recorder := audit.NewRecorder(&nopSink{}, 64, logger.Nop())
	svc := service.NewLeaveService(repository.NewLeaveRepository(db.DB), recorder, publisher, logger.Nop())
	return &fixture{db: db, svc: svc, publisher: publisher}
}

func asRole(username string, roles ...string) context.Context {
	return httputil.WithUserContext(context.Background(), username, roles)
}

var leaveCols = []string{
	"id", "employee_id", "created_by", "leave_type", "start_date", "end_date",
	"days", "reason", "status", "reporting_manager", "department",
	"manager_actor", "manager_at", "manager_comments",
	"admin_actor", "admin_at", "admin_comments",
	"rejected_by", "rejected_at", "rejection_reason",
	"created_at", "updated_at",
}

func leaveRow(id, employeeID, createdBy, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, 10)
	end := start.AddDate(0, 0, 2)
	return testutil.Rows(leaveCols...).AddRow(
		id, employeeID, createdBy, "CASUAL", start, end, 3,
		"attending a family function", status, "", "",
		nil, nil, nil, nil, nil, nil, nil, nil, nil, now, now,
	)
}

func expectGet(f *fixture, rows *sqlmock.Rows) {
	f.db.Mock.ExpectQuery(`FROM leave_requests WHERE id = \$1`).WillReturnRows(rows)
}

func TestCreate_DateGuards(t *testing.T) {
	f := newFixture(t)
	today := time.Now().UTC()

	t.Run("start not in the future", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), &service.CreateLeaveRequest{
			EmployeeID: "EMPAAAA0001",
			LeaveType:  "CASUAL",
			StartDate:  today,
			EndDate:    today.AddDate(0, 0, 2),
			Reason:     "attending a family function",
		})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidInput), "got %v", err)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), &service.CreateLeaveRequest{
			EmployeeID: "EMPAAAA0001",
			LeaveType:  "CASUAL",
			StartDate:  today.AddDate(0, 0, 5),
			EndDate:    today.AddDate(0, 0, 3),
			Reason:     "attending a family function",
		})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidInput), "got %v", err)
	})
}

func TestCreate_RejectsOverlapWithApprovedLeave(t *testing.T) {
	f := newFixture(t)
	f.db.Mock.ExpectQuery(`AND start_date <= \$4`).
		WillReturnRows(leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusAdminApproved))

	start := time.Now().UTC().AddDate(0, 0, 10)
	_, err := f.svc.Create(context.Background(), &service.CreateLeaveRequest{
		EmployeeID: "EMPAAAA0001",
		LeaveType:  "CASUAL",
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		Reason:     "attending a family function",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
	assert.Contains(t, err.Error(), "overlaps an approved leave")
	f.db.ExpectationsWereMet(t)
}

func TestCreate_FilesPendingRequest(t *testing.T) {
	f := newFixture(t)
	f.db.Mock.ExpectQuery(`AND start_date <= \$4`).WillReturnRows(testutil.Rows(leaveCols...))
	f.db.Mock.ExpectQuery(`INSERT INTO leave_requests`).
		WillReturnRows(testutil.Rows("created_at", "updated_at").
			AddRow(time.Now().UTC(), time.Now().UTC()))

	start := time.Now().UTC().AddDate(0, 0, 10)
	l, err := f.svc.Create(asRole("dave", "USER"), &service.CreateLeaveRequest{
		EmployeeID: "EMPAAAA0001",
		LeaveType:  "CASUAL",
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		Reason:     "attending a family function",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, l.Status)
	assert.Equal(t, 3, l.Days)
	assert.Equal(t, "dave", l.CreatedBy)
	f.db.ExpectationsWereMet(t)
}

func TestManagerApprove(t *testing.T) {
	t.Run("pending request approved", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		f.db.Mock.ExpectExec(`UPDATE leave_requests SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		l, err := f.svc.ManagerApprove(asRole("carol", "MANAGER"), "l1", &service.DecisionRequest{Comments: "looks fine"})
		require.NoError(t, err)
		assert.Equal(t, repository.StatusManagerApproved, l.Status)
		require.NotNil(t, l.ManagerActor)
		assert.Equal(t, "carol", *l.ManagerActor)
		f.db.ExpectationsWereMet(t)
	})

	t.Run("lost race surfaces as conflict", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		f.db.Mock.ExpectExec(`UPDATE leave_requests SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))

		_, err := f.svc.ManagerApprove(asRole("carol", "MANAGER"), "l1", &service.DecisionRequest{Comments: "looks fine"})
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
		f.db.ExpectationsWereMet(t)
	})

	t.Run("already decided request", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))

		_, err := f.svc.ManagerApprove(asRole("carol", "MANAGER"), "l1", &service.DecisionRequest{Comments: "looks fine"})
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
	})
}

func TestAdminApprove(t *testing.T) {
	t.Run("manager-approved request granted", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))
		f.db.Mock.ExpectQuery(`AND start_date <= \$4`).WillReturnRows(testutil.Rows(leaveCols...))
		f.db.Mock.ExpectExec(`UPDATE leave_requests SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		l, err := f.svc.AdminApprove(asRole("root", "ADMIN"), "l1", &service.DecisionRequest{Comments: "approved"})
		require.NoError(t, err)
		assert.Equal(t, repository.StatusAdminApproved, l.Status)
		f.publisher.AssertPublished(t, events.LeaveApproved)
		f.db.ExpectationsWereMet(t)
	})

	t.Run("overlap re-check blocks the grant", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))
		f.db.Mock.ExpectQuery(`AND start_date <= \$4`).
			WillReturnRows(leaveRow("l2", "EMPAAAA0001", "dave", repository.StatusAdminApproved))

		_, err := f.svc.AdminApprove(asRole("root", "ADMIN"), "l1", &service.DecisionRequest{Comments: "approved"})
		assert.True(t, apperr.Is(err, apperr.ErrDomainRule), "got %v", err)
	})

	t.Run("pending request cannot skip the manager stage", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		f.db.Mock.ExpectQuery(`AND start_date <= \$4`).WillReturnRows(testutil.Rows(leaveCols...))

		_, err := f.svc.AdminApprove(asRole("root", "ADMIN"), "l1", &service.DecisionRequest{Comments: "approved"})
		assert.True(t, apperr.Is(err, apperr.ErrIllegalTransition), "got %v", err)
	})
}

func TestReject(t *testing.T) {
	t.Run("pending rejection needs manager or admin", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))

		_, err := f.svc.Reject(asRole("dave", "USER"), "l1", &service.DecisionRequest{Comments: "changed my mind"})
		assert.True(t, apperr.Is(err, apperr.ErrForbidden), "got %v", err)
	})

	t.Run("manager-approved rejection needs admin", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusManagerApproved))

		_, err := f.svc.Reject(asRole("carol", "MANAGER"), "l1", &service.DecisionRequest{Comments: "short staffed"})
		assert.True(t, apperr.Is(err, apperr.ErrForbidden), "got %v", err)
	})

	t.Run("terminal state cannot be rejected", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusRejected))

		_, err := f.svc.Reject(asRole("root", "ADMIN"), "l1", &service.DecisionRequest{Comments: "short staffed"})
		assert.True(t, apperr.Is(err, apperr.ErrIllegalTransition), "got %v", err)
	})

	t.Run("manager rejects a pending request", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		f.db.Mock.ExpectExec(`UPDATE leave_requests SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		l, err := f.svc.Reject(asRole("carol", "MANAGER"), "l1", &service.DecisionRequest{Comments: "short staffed"})
		require.NoError(t, err)
		assert.Equal(t, repository.StatusRejected, l.Status)
		require.NotNil(t, l.RejectionReason)
		assert.Equal(t, "short staffed", *l.RejectionReason)
		f.publisher.AssertPublished(t, events.LeaveRejected)
	})
}

func TestCancel(t *testing.T) {
	t.Run("stranger cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))

		_, err := f.svc.Cancel(asRole("mallory", "USER"), "l1")
		assert.True(t, apperr.Is(err, apperr.ErrForbidden), "got %v", err)
	})

	t.Run("owner cancels a pending request", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusPending))
		f.db.Mock.ExpectExec(`UPDATE leave_requests SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		l, err := f.svc.Cancel(asRole("dave", "USER"), "l1")
		require.NoError(t, err)
		assert.Equal(t, repository.StatusCancelled, l.Status)
	})

	t.Run("terminal state cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		expectGet(f, leaveRow("l1", "EMPAAAA0001", "dave", repository.StatusAdminApproved))

		_, err := f.svc.Cancel(asRole("root", "ADMIN"), "l1")
		assert.True(t, apperr.Is(err, apperr.ErrIllegalTransition), "got %v", err)
	})
}
