// Package scheduler computes deterministic EMI schedules for installment
// loans. Amounts are two-decimal; the final installment absorbs rounding
// so the schedule sums to the loan total exactly.
package scheduler

import (
	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/money"
	"github.com/peopleops/hrms-backend/pkg/period"
)

// Installment is one scheduled repayment.
type Installment struct {
	Sequence int             `json:"sequence"`
	Period   period.Period   `json:"period"`
	Amount   decimal.Decimal `json:"amount"`
}

// Plan is the derived repayment plan for a loan.
type Plan struct {
	EMIAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Schedule    []Installment
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// Build computes the repayment plan. A zero annual rate repays the
// principal in equal ceiling-rounded installments with the final one
// adjusted down; a positive rate uses the standard amortization formula
// with the total fixed at EMI times count.
func Build(principal decimal.Decimal, annualRate decimal.Decimal, emiCount int, start period.Period) (*Plan, error) {
	if !principal.IsPositive() {
		return nil, apperr.InvalidInput("principal must be positive").WithField("principal", "must be > 0")
	}
	if annualRate.IsNegative() {
		return nil, apperr.InvalidInput("interest rate must not be negative").WithField("annual_interest_rate", "must be >= 0")
	}
	if emiCount <= 0 {
		return nil, apperr.InvalidInput("EMI count must be positive").WithField("emi_count", "must be > 0")
	}

	principal = money.Round(principal)
	n := decimal.NewFromInt(int64(emiCount))

	var emi, total decimal.Decimal
	if annualRate.IsZero() {
		emi = money.Ceil(principal.Div(n))
		total = principal
	} else {
		// r is the monthly rate at full precision; only the EMI is
		// rounded.
		r := annualRate.Div(hundred).Div(twelve)
		growth := one.Add(r).Pow(n)
		emi = money.Round(principal.Mul(r).Mul(growth).Div(growth.Sub(one)))
		total = emi.Mul(n)
	}

	schedule := make([]Installment, emiCount)
	running := money.Zero
	p := start
	for i := 0; i < emiCount; i++ {
		amount := emi
		if i == emiCount-1 {
			amount = total.Sub(running)
		}
		schedule[i] = Installment{Sequence: i + 1, Period: p, Amount: amount}
		running = running.Add(amount)
		p = p.Next()
	}

	return &Plan{EMIAmount: emi, TotalAmount: total, Schedule: schedule}, nil
}
