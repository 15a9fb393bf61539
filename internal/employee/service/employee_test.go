package service_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/employee/repository"
	"github.com/peopleops/hrms-backend/internal/employee/service"
	"github.com/peopleops/hrms-backend/internal/events"
	"github.com/peopleops/hrms-backend/internal/payroll/calc"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/testutil"
)

type discardSink struct{}

func (discardSink) Create(ctx context.Context, entry *audit.Entry) error { return nil }

func newService(t *testing.T) (*service.EmployeeService, *testutil.MockDB, *testutil.CapturePublisher) {
	t.Helper()
	db := testutil.NewMockDB(t)
	publisher := &testutil.CapturePublisher{}
	recorder := audit.NewRecorder(discardSink{}, 64, logger.Nop())
	params := calc.NewParams(&config.PayrollConfig{
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
	})
	svc := service.NewEmployeeService(repository.NewEmployeeRepository(db.DB), params, recorder, publisher, logger.Nop())
	return svc, db, publisher
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createRequest() *service.CreateEmployeeRequest {
	hra := dec("10")
	return &service.CreateEmployeeRequest{
		FirstName:      "Jane",
		LastName:       "Doe",
		Email:          "jane.doe@example.com",
		EmploymentType: "FULL_TIME",
		Department:     "Engineering",
		Designation:    "Engineer",
		JoinDate:       time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		Compensation: service.CompensationRequest{
			CTC:        dec("1200000"),
			HRAPercent: &hra,
			IncludePF:  true,
			TDSAnnual:  dec("60000"),
		},
	}
}

func TestCreate(t *testing.T) {
	t.Run("persists the decomposition", func(t *testing.T) {
		svc, db, publisher := newService(t)
		now := time.Now().UTC()
		db.Mock.ExpectQuery(`INSERT INTO employees`).
			WillReturnRows(testutil.Rows("created_at", "updated_at").AddRow(now, now))

		emp, err := svc.Create(context.Background(), createRequest())
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^EMP[A-Z0-9]{8}$`), emp.PublicID)
		assert.Equal(t, repository.StatusActive, emp.Status)
		assert.Equal(t, "50000", emp.Basic.String())
		assert.Equal(t, "98200", emp.Gross.String())
		assert.Equal(t, "91200", emp.Net.String())
		publisher.AssertPublished(t, events.EmployeeCreated)
		db.ExpectationsWereMet(t)
	})

	t.Run("future join date rejected", func(t *testing.T) {
		svc, _, _ := newService(t)
		req := createRequest()
		req.JoinDate = time.Now().AddDate(5, 0, 0)

		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))

		var appErr *apperr.Error
		require.True(t, apperr.As(err, &appErr))
		require.Len(t, appErr.Fields, 1)
		assert.Equal(t, "join_date", appErr.Fields[0].Field)
	})

	t.Run("negative annual TDS rejected", func(t *testing.T) {
		svc, _, _ := newService(t)
		req := createRequest()
		req.Compensation.TDSAnnual = dec("-1")

		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))

		var appErr *apperr.Error
		require.True(t, apperr.As(err, &appErr))
		require.Len(t, appErr.Fields, 1)
		assert.Equal(t, "compensation.tds_annual", appErr.Fields[0].Field)
	})
}

func TestUpdate_FutureJoinDateRejected(t *testing.T) {
	svc, db, _ := newService(t)

	_, err := svc.Update(context.Background(), "EMPAAAA0001", &service.UpdateEmployeeRequest{
		JoinDate: time.Now().AddDate(0, 1, 0),
	})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput), "got %v", err)
	db.ExpectationsWereMet(t)
}

func TestPreview_DoesNotPersist(t *testing.T) {
	svc, db, _ := newService(t)

	hra := dec("10")
	b, err := svc.Preview(context.Background(), &service.CompensationRequest{
		CTC:        dec("1200000"),
		HRAPercent: &hra,
		IncludePF:  true,
		TDSAnnual:  dec("60000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "91200", b.Net.String())
	db.ExpectationsWereMet(t)
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

func employeeRow(publicID string) []driver.Value {
	now := time.Now().UTC()
	return []driver.Value{
		"e1", publicID, "Jane", "Doe", nil, "jane.doe@example.com",
		"", "", "FULL_TIME", "Engineering", "Engineer",
		"", now, "", 0,
		"", "", "", "ACTIVE",
		"1200000", "10", true, false, "60000",
		"50000", "5000", "1600", "500", "1250", "39850",
		"98200", "1800", "1800", "0", "0",
		"200", "5000", "91200", now, now,
	}
}

func TestDelete(t *testing.T) {
	t.Run("dependent records block deletion", func(t *testing.T) {
		svc, db, _ := newService(t)
		row := employeeRow("EMPAAAA0001")
		db.Mock.ExpectQuery(`FROM employees WHERE public_id = \$1`).
			WillReturnRows(testutil.Rows(employeeCols...).AddRow(row...))
		db.Mock.ExpectQuery(`SELECT \(SELECT COUNT`).
			WillReturnRows(testutil.Rows("count").AddRow(3))

		err := svc.Delete(context.Background(), "EMPAAAA0001")
		assert.True(t, apperr.Is(err, apperr.ErrConflict), "got %v", err)
		db.ExpectationsWereMet(t)
	})

	t.Run("clean employee deleted", func(t *testing.T) {
		svc, db, _ := newService(t)
		row := employeeRow("EMPAAAA0001")
		db.Mock.ExpectQuery(`FROM employees WHERE public_id = \$1`).
			WillReturnRows(testutil.Rows(employeeCols...).AddRow(row...))
		db.Mock.ExpectQuery(`SELECT \(SELECT COUNT`).
			WillReturnRows(testutil.Rows("count").AddRow(0))
		db.Mock.ExpectExec(`DELETE FROM employees`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.Delete(context.Background(), "EMPAAAA0001"))
		db.ExpectationsWereMet(t)
	})
}
