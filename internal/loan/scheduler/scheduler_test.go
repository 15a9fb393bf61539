package scheduler_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/internal/loan/scheduler"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/period"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuild_ZeroRateEvenSplit(t *testing.T) {
	start := period.Period{Month: time.January, Year: 2026}
	plan, err := scheduler.Build(dec("60000"), decimal.Zero, 12, start)
	require.NoError(t, err)

	assert.True(t, plan.EMIAmount.Equal(dec("5000")), "emi: %s", plan.EMIAmount)
	assert.True(t, plan.TotalAmount.Equal(dec("60000")))
	require.Len(t, plan.Schedule, 12)

	for i, inst := range plan.Schedule {
		assert.True(t, inst.Amount.Equal(dec("5000")), "installment %d: %s", i+1, inst.Amount)
		assert.Equal(t, start.AddMonths(i), inst.Period)
	}
}

func TestBuild_ZeroRateFinalAdjustsDown(t *testing.T) {
	// 10000 / 3 = 3333.34 ceiling; final takes the residue.
	plan, err := scheduler.Build(dec("10000"), decimal.Zero, 3, period.Period{Month: time.May, Year: 2026})
	require.NoError(t, err)

	assert.True(t, plan.EMIAmount.Equal(dec("3333.34")))
	assert.True(t, plan.Schedule[0].Amount.Equal(dec("3333.34")))
	assert.True(t, plan.Schedule[1].Amount.Equal(dec("3333.34")))
	assert.True(t, plan.Schedule[2].Amount.Equal(dec("3333.32")), "final: %s", plan.Schedule[2].Amount)

	sum := decimal.Zero
	for _, inst := range plan.Schedule {
		sum = sum.Add(inst.Amount)
	}
	assert.True(t, sum.Equal(plan.TotalAmount))
	assert.True(t, plan.TotalAmount.Equal(dec("10000")))
}

func TestBuild_PositiveRateAmortizes(t *testing.T) {
	plan, err := scheduler.Build(dec("100000"), dec("12"), 12, period.Period{Month: time.January, Year: 2026})
	require.NoError(t, err)

	// Standard amortization at 1% monthly.
	assert.True(t, plan.EMIAmount.Equal(dec("8884.88")), "emi: %s", plan.EMIAmount)
	assert.True(t, plan.TotalAmount.Equal(plan.EMIAmount.Mul(decimal.NewFromInt(12))))

	sum := decimal.Zero
	for _, inst := range plan.Schedule {
		sum = sum.Add(inst.Amount)
	}
	assert.True(t, sum.Equal(plan.TotalAmount), "schedule sums to total")
	assert.True(t, plan.TotalAmount.GreaterThan(dec("100000")))
}

func TestBuild_ScheduleSumsToTotalForAll(t *testing.T) {
	start := period.Period{Month: time.June, Year: 2026}
	cases := []struct {
		principal string
		rate      string
		count     int
	}{
		{"50000", "0", 7},
		{"99999.99", "0", 13},
		{"75000", "9.5", 24},
		{"1000", "36", 5},
	}

	for _, c := range cases {
		plan, err := scheduler.Build(dec(c.principal), dec(c.rate), c.count, start)
		require.NoError(t, err, "%+v", c)

		sum := decimal.Zero
		for _, inst := range plan.Schedule {
			sum = sum.Add(inst.Amount)
		}
		assert.True(t, sum.Equal(plan.TotalAmount), "%+v: sum %s total %s", c, sum, plan.TotalAmount)
	}
}

func TestBuild_Errors(t *testing.T) {
	start := period.Period{Month: time.January, Year: 2026}

	_, err := scheduler.Build(decimal.Zero, decimal.Zero, 12, start)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))

	_, err = scheduler.Build(dec("1000"), dec("-1"), 12, start)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))

	_, err = scheduler.Build(dec("1000"), decimal.Zero, 0, start)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidInput))
}
