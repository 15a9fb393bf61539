package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	advancerepo "github.com/peopleops/hrms-backend/internal/advance/repository"
	attendancerepo "github.com/peopleops/hrms-backend/internal/attendance/repository"
	"github.com/peopleops/hrms-backend/internal/audit"
	employeerepo "github.com/peopleops/hrms-backend/internal/employee/repository"
	"github.com/peopleops/hrms-backend/internal/events"
	loanrepo "github.com/peopleops/hrms-backend/internal/loan/repository"
	"github.com/peopleops/hrms-backend/internal/payroll/calc"
	"github.com/peopleops/hrms-backend/internal/payroll/repository"
	"github.com/peopleops/hrms-backend/internal/payroll/service"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/period"
	"github.com/peopleops/hrms-backend/pkg/testutil"
)

type discardSink struct{}

func (discardSink) Create(ctx context.Context, entry *audit.Entry) error { return nil }

func payrollConfig() *config.PayrollConfig {
	return &config.PayrollConfig{
		PFBaseCap:          15000,
		PFRate:             12,
		ESIEmployeeRate:    0.75,
		ESIEmployerRate:    3.25,
		DefaultWorkingDays: 26,
		HRAPercentLow:      10,
		HRAPercentHigh:     40,
		HRAThresholdCTC:    1200000,
		ConveyanceDefault:  1600,
		TelephoneDefault:   500,
		MedicalDefault:     1250,
	}
}

type payrunFixture struct {
	db        *testutil.MockDB
	svc       *service.PayRunService
	publisher *testutil.CapturePublisher
}

func newPayrunFixture(t *testing.T) *payrunFixture {
	t.Helper()
	db := testutil.NewMockDB(t)
	publisher := &testutil.CapturePublisher{}
	recorder := audit.NewRecorder(discardSink{}, 64, logger.Nop())
	cfg := payrollConfig()

	svc := service.NewPayRunService(
		db.DB,
		repository.NewPayRunRepository(db.DB),
		employeerepo.NewEmployeeRepository(db.DB),
		attendancerepo.NewAttendanceRepository(db.DB),
		loanrepo.NewLoanRepository(db.DB),
		advancerepo.NewAdvanceRepository(db.DB),
		calc.NewParams(cfg),
		cfg,
		recorder,
		publisher,
		logger.Nop(),
	)
	return &payrunFixture{db: db, svc: svc, publisher: publisher}
}

var employeeCols = []string{
	"id", "public_id", "first_name", "last_name", "date_of_birth", "email",
	"phone", "address", "employment_type", "department", "designation",
	"reporting_manager", "join_date", "work_location", "probation_months",
	"bank_name", "bank_account", "bank_ifsc", "status",
	"ctc", "hra_percent", "include_pf", "include_esi", "tds_annual",
	"basic", "hra", "conveyance", "telephone", "medical", "special_allowance",
	"gross", "pf_employee", "pf_employer", "esi_employee", "esi_employer",
	"professional_tax", "tds_monthly", "net_pay", "created_at", "updated_at",
}

// standardEmployeeRow is the decomposition of a 1,200,000 CTC with 10%
// HRA, PF on and ESI off.
func standardEmployeeRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return testutil.Rows(employeeCols...).AddRow(
		"e1", "EMP00000001", "Jane", "Doe", nil, "jane@example.com",
		"", "", "FULL_TIME", "Engineering", "Engineer",
		"", now, "", 0,
		"", "", "", "ACTIVE",
		"1200000", "10", true, false, "60000",
		"50000", "5000", "1600", "500", "1250", "39850",
		"98200", "1800", "1800", "0", "0",
		"200", "5000", "91200", now, now,
	)
}

func TestGenerate(t *testing.T) {
	march := period.Period{Month: time.March, Year: 2026}
	now := time.Now().UTC()

	t.Run("prorates, recovers loans then advances", func(t *testing.T) {
		f := newPayrunFixture(t)
		m := f.db.Mock

		m.ExpectBegin()
		m.ExpectQuery(`INSERT INTO payruns`).
			WillReturnRows(testutil.Rows("generated_at").AddRow(now))
		m.ExpectQuery(`FROM employees WHERE status = \$1`).
			WillReturnRows(standardEmployeeRow())

		// Attendance: 13 payable of 26 working days.
		m.ExpectQuery(`FROM attendance_records WHERE employee_id = \$1`).
			WillReturnRows(testutil.Rows(
				"id", "employee_id", "month", "year", "total_working_days",
				"present_days", "absent_days", "paid_leave", "unpaid_leave",
				"payable_days", "loss_of_pay_days", "remarks", "consumed",
				"created_at", "updated_at",
			).AddRow("rec1", "EMP00000001", 3, 2026, 26, 13, 13, 0, 0, 13, 13, "", false, now, now))
		m.ExpectExec(`UPDATE attendance_records SET consumed = TRUE`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// One active loan on its final EMI of 5000.
		m.ExpectQuery(`FROM loans`).
			WillReturnRows(testutil.Rows(
				"id", "employee_id", "principal", "annual_interest_rate",
				"emi_count", "emi_amount", "total_amount", "start_month",
				"start_year", "paid_emi_count", "remaining_balance", "status",
				"remarks", "created_at", "updated_at",
			).AddRow("l1", "EMP00000001", "60000", "0", 12, "5000", "60000",
				4, 2025, 11, "5000", loanrepo.StatusActive, "", now, now))
		m.ExpectQuery(`FROM loan_schedule`).
			WillReturnRows(testutil.Rows(
				"id", "loan_id", "sequence", "month", "year", "amount", "status",
			).AddRow("s12", "l1", 12, 3, 2026, "5000", loanrepo.InstallmentPending))
		m.ExpectExec(`UPDATE loan_schedule SET status = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectExec(`UPDATE loans SET paid_emi_count = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// One pending advance of 2000 due this period.
		m.ExpectQuery(`FROM advances`).
			WillReturnRows(testutil.Rows(
				"id", "employee_id", "advance_month", "advance_year",
				"deduction_month", "deduction_year", "paid_amount",
				"remaining_amount", "status", "remarks", "created_at", "updated_at",
			).AddRow("a1", "EMP00000001", 1, 2026, 3, 2026, "2000", "2000",
				advancerepo.StatusPending, "", now, now))
		m.ExpectExec(`UPDATE advances SET remaining_amount = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		m.ExpectExec(`INSERT INTO payrun_items`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectExec(`UPDATE payruns SET employee_count = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectCommit()

		v, err := f.svc.Generate(context.Background(), &service.GenerateRequest{Period: march})
		require.NoError(t, err)

		assert.Equal(t, march, v.Period)
		assert.Equal(t, 1, v.EmployeeCount)
		require.Len(t, v.Items, 1)

		item := v.Items[0]
		assert.Equal(t, 26, item.WorkingDays)
		assert.Equal(t, 13, item.PayableDays)
		assert.Equal(t, "25000", item.Basic.String())
		assert.Equal(t, "2500", item.HRA.String())
		assert.Equal(t, "49100", item.Gross.String())
		assert.Equal(t, "1800", item.PFDeduction.String(), "pf on prorated basic over the cap")
		assert.True(t, item.ESIDeduction.IsZero())
		assert.Equal(t, "200", item.ProfessionalTax.String())
		assert.Equal(t, "5000", item.TDSMonthly.String())
		assert.Equal(t, "5000", item.LoanEMI.String())
		assert.Equal(t, "2000", item.AdvanceDeduction.String())
		assert.Equal(t, "49100", item.LOPAmount.String())
		assert.Equal(t, "35100", item.NetPay.String())

		assert.Equal(t, "49100", v.TotalGross.String())
		assert.Equal(t, "14000", v.TotalDeductions.String())
		assert.Equal(t, "35100", v.TotalNet.String())

		f.publisher.AssertPublished(t, events.PayRunGenerated)
		f.publisher.AssertPublished(t, events.LoanCompleted)
		f.publisher.AssertPublished(t, events.AdvanceDeducted)
		f.db.ExpectationsWereMet(t)
	})

	t.Run("missing attendance assumes full days", func(t *testing.T) {
		f := newPayrunFixture(t)
		m := f.db.Mock

		m.ExpectBegin()
		m.ExpectQuery(`INSERT INTO payruns`).
			WillReturnRows(testutil.Rows("generated_at").AddRow(now))
		m.ExpectQuery(`FROM employees WHERE status = \$1`).
			WillReturnRows(standardEmployeeRow())
		m.ExpectQuery(`FROM attendance_records WHERE employee_id = \$1`).
			WillReturnRows(testutil.Rows("id"))
		m.ExpectQuery(`FROM loans`).WillReturnRows(testutil.Rows("id"))
		m.ExpectQuery(`FROM advances`).WillReturnRows(testutil.Rows("id"))
		m.ExpectExec(`INSERT INTO payrun_items`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectExec(`UPDATE payruns SET employee_count = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectCommit()

		v, err := f.svc.Generate(context.Background(), &service.GenerateRequest{Period: march})
		require.NoError(t, err)
		require.Len(t, v.Items, 1)

		item := v.Items[0]
		assert.Equal(t, 26, item.WorkingDays)
		assert.Equal(t, 26, item.PayableDays)
		assert.Equal(t, "98200", item.Gross.String())
		assert.True(t, item.LOPAmount.IsZero())
		assert.Equal(t, "91200", item.NetPay.String())
		f.db.ExpectationsWereMet(t)
	})

	t.Run("duplicate period conflicts", func(t *testing.T) {
		f := newPayrunFixture(t)
		m := f.db.Mock

		m.ExpectBegin()
		m.ExpectQuery(`INSERT INTO payruns`).
			WillReturnError(&pq.Error{Code: "23505"})
		m.ExpectRollback()

		_, err := f.svc.Generate(context.Background(), &service.GenerateRequest{Period: march})
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
		f.db.ExpectationsWereMet(t)
	})

	t.Run("per-employee failure aborts the run", func(t *testing.T) {
		f := newPayrunFixture(t)
		m := f.db.Mock

		m.ExpectBegin()
		m.ExpectQuery(`INSERT INTO payruns`).
			WillReturnRows(testutil.Rows("generated_at").AddRow(now))
		m.ExpectQuery(`FROM employees WHERE status = \$1`).
			WillReturnRows(standardEmployeeRow())
		m.ExpectQuery(`FROM attendance_records WHERE employee_id = \$1`).
			WillReturnRows(testutil.Rows(
				"id", "employee_id", "month", "year", "total_working_days",
				"present_days", "absent_days", "paid_leave", "unpaid_leave",
				"payable_days", "loss_of_pay_days", "remarks", "consumed",
				"created_at", "updated_at",
			).AddRow("rec1", "EMP00000001", 3, 2026, 0, 0, 0, 0, 0, 0, 0, "", false, now, now))
		m.ExpectExec(`UPDATE attendance_records SET consumed = TRUE`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectRollback()

		_, err := f.svc.Generate(context.Background(), &service.GenerateRequest{Period: march})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.ErrDomainRule))
		assert.Contains(t, err.Error(), "pay-run generation failed for employee EMP00000001")
		f.db.ExpectationsWereMet(t)
	})

	t.Run("period required", func(t *testing.T) {
		f := newPayrunFixture(t)
		_, err := f.svc.Generate(context.Background(), &service.GenerateRequest{})
		assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
	})
}
