package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/loan/repository"
	"github.com/peopleops/hrms-backend/internal/loan/service"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/period"
	"github.com/peopleops/hrms-backend/pkg/testutil"
)

type discardSink struct{}

func (discardSink) Create(ctx context.Context, entry *audit.Entry) error { return nil }

func newService(t *testing.T) (*service.LoanService, *testutil.MockDB, *testutil.CapturePublisher) {
	t.Helper()
	db := testutil.NewMockDB(t)
	publisher := &testutil.CapturePublisher{}
	recorder := audit.NewRecorder(discardSink{}, 64, logger.Nop())
	svc := service.NewLoanService(repository.NewLoanRepository(db.DB), recorder, publisher, logger.Nop())
	return svc, db, publisher
}

var loanCols = []string{
	"id", "employee_id", "principal", "annual_interest_rate", "emi_count", "emi_amount",
	"total_amount", "start_month", "start_year", "paid_emi_count", "remaining_balance",
	"status", "remarks", "created_at", "updated_at",
}

func loanRow(status string, paidEMIs int) *sqlmock.Rows {
	now := time.Now().UTC()
	return testutil.Rows(loanCols...).AddRow(
		"l1", "EMPAAAA0001", "60000", "0", 3, "20000",
		"60000", 1, 2026, paidEMIs, "40000",
		status, "", now, now)
}

func TestCreate_PersistsLoanAndSchedule(t *testing.T) {
	svc, db, _ := newService(t)

	now := time.Now().UTC()
	db.Mock.ExpectBegin()
	db.Mock.ExpectQuery(`INSERT INTO loans`).
		WillReturnRows(testutil.Rows("created_at", "updated_at").AddRow(now, now))
	for i := 0; i < 3; i++ {
		db.Mock.ExpectExec(`INSERT INTO loan_schedule`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	db.Mock.ExpectCommit()

	v, err := svc.Create(context.Background(), &service.LoanRequest{
		EmployeeID:         "EMPAAAA0001",
		Principal:          decimal.NewFromInt(60000),
		AnnualInterestRate: decimal.Zero,
		EMICount:           3,
		StartPeriod:        period.Period{Month: time.January, Year: 2026},
	})
	require.NoError(t, err)

	assert.Equal(t, repository.StatusActive, v.Status)
	assert.Equal(t, "20000", v.EMIAmount.String())
	assert.True(t, v.RemainingBalance.Equal(v.TotalAmount))
	require.Len(t, v.Schedule, 3)
	assert.Equal(t, period.Period{Month: time.January, Year: 2026}, v.Schedule[0].Period)
	assert.Equal(t, period.Period{Month: time.March, Year: 2026}, v.Schedule[2].Period)
	for _, inst := range v.Schedule {
		assert.Equal(t, repository.InstallmentPending, inst.Status)
	}
	db.ExpectationsWereMet(t)
}

func TestCancel(t *testing.T) {
	t.Run("freezes an active loan", func(t *testing.T) {
		svc, db, _ := newService(t)
		db.Mock.ExpectExec(`UPDATE loans SET status = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		db.Mock.ExpectQuery(`FROM loans WHERE id = \$1`).
			WillReturnRows(loanRow(repository.StatusCancelled, 1))
		db.Mock.ExpectQuery(`FROM loan_schedule WHERE loan_id = \$1`).
			WillReturnRows(testutil.Rows("id", "loan_id", "sequence", "month", "year", "amount", "status"))

		v, err := svc.Cancel(context.Background(), "l1")
		require.NoError(t, err)
		assert.Equal(t, repository.StatusCancelled, v.Status)
		assert.Equal(t, "40000", v.RemainingBalance.String())
		db.ExpectationsWereMet(t)
	})

	t.Run("completed loan cannot be cancelled", func(t *testing.T) {
		svc, db, _ := newService(t)
		db.Mock.ExpectExec(`UPDATE loans SET status = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		db.Mock.ExpectQuery(`SELECT status FROM loans`).
			WillReturnRows(testutil.Rows("status").AddRow(repository.StatusCompleted))

		_, err := svc.Cancel(context.Background(), "l1")
		assert.True(t, apperr.Is(err, apperr.ErrIllegalTransition), "got %v", err)
		db.ExpectationsWereMet(t)
	})
}

func TestDelete(t *testing.T) {
	t.Run("loan without repayments deleted", func(t *testing.T) {
		svc, db, _ := newService(t)
		db.Mock.ExpectExec(`DELETE FROM loans`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.Delete(context.Background(), "l1"))
		db.ExpectationsWereMet(t)
	})

	t.Run("repayments on record block deletion", func(t *testing.T) {
		svc, db, _ := newService(t)
		db.Mock.ExpectExec(`DELETE FROM loans`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		db.Mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(testutil.Rows("exists").AddRow(true))

		err := svc.Delete(context.Background(), "l1")
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
		db.ExpectationsWereMet(t)
	})
}
