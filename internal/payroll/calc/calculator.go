// Package calc decomposes an annual Cost-To-Company figure into monthly
// compensation components. The calculator is a pure function of its inputs
// and the injected statutory parameter table; every monetary boundary is
// banker's-rounded at two decimals.
package calc

import (
	"github.com/shopspring/decimal"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/money"
)

// Params is the statutory profile, injected at boot.
type Params struct {
	PFBaseCap         decimal.Decimal
	PFRate            decimal.Decimal
	ESIEmployeeRate   decimal.Decimal
	ESIEmployerRate   decimal.Decimal
	HRAPercentLow     decimal.Decimal
	HRAPercentHigh    decimal.Decimal
	HRAThresholdCTC   decimal.Decimal
	ConveyanceDefault decimal.Decimal
	TelephoneDefault  decimal.Decimal
	MedicalDefault    decimal.Decimal
	ptSlabs           []ptSlab
}

type ptSlab struct {
	grossAbove decimal.Decimal
	amount     decimal.Decimal
}

// NewParams converts the configured statutory profile into decimal form.
func NewParams(cfg *config.PayrollConfig) Params {
	p := Params{
		PFBaseCap:         decimal.NewFromFloat(cfg.PFBaseCap),
		PFRate:            decimal.NewFromFloat(cfg.PFRate),
		ESIEmployeeRate:   decimal.NewFromFloat(cfg.ESIEmployeeRate),
		ESIEmployerRate:   decimal.NewFromFloat(cfg.ESIEmployerRate),
		HRAPercentLow:     decimal.NewFromFloat(cfg.HRAPercentLow),
		HRAPercentHigh:    decimal.NewFromFloat(cfg.HRAPercentHigh),
		HRAThresholdCTC:   decimal.NewFromFloat(cfg.HRAThresholdCTC),
		ConveyanceDefault: decimal.NewFromFloat(cfg.ConveyanceDefault),
		TelephoneDefault:  decimal.NewFromFloat(cfg.TelephoneDefault),
		MedicalDefault:    decimal.NewFromFloat(cfg.MedicalDefault),
	}
	for _, slab := range cfg.ProfessionalTax {
		p.ptSlabs = append(p.ptSlabs, ptSlab{
			grossAbove: decimal.NewFromFloat(slab.GrossAbove),
			amount:     decimal.NewFromFloat(slab.Amount),
		})
	}
	return p
}

// ProfessionalTaxFor returns the flat tax for a monthly gross. Zero
// gross owes nothing; an empty table falls back to the statutory
// default of 200.
func (p Params) ProfessionalTaxFor(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return money.Zero
	}
	if len(p.ptSlabs) == 0 {
		return money.FromInt(200)
	}
	amount := money.Zero
	for _, slab := range p.ptSlabs {
		if gross.GreaterThanOrEqual(slab.grossAbove) {
			amount = slab.amount
		}
	}
	return amount
}

// DefaultHRAPercent returns the HRA percentage applied when the caller
// does not supply one: low below the CTC threshold, high at or above it.
func (p Params) DefaultHRAPercent(ctc decimal.Decimal) decimal.Decimal {
	if ctc.LessThan(p.HRAThresholdCTC) {
		return p.HRAPercentLow
	}
	return p.HRAPercentHigh
}

// Input is the compensation decomposition request. Nil override pointers
// fall back to the parameter defaults.
type Input struct {
	CTC        decimal.Decimal
	HRAPercent *decimal.Decimal
	Conveyance *decimal.Decimal
	Telephone  *decimal.Decimal
	Medical    *decimal.Decimal
	IncludePF  bool
	IncludeESI bool
	TDSAnnual  decimal.Decimal
}

// Breakdown is the monthly compensation decomposition.
type Breakdown struct {
	MonthlyCTC       decimal.Decimal `json:"monthly_ctc"`
	Basic            decimal.Decimal `json:"basic"`
	HRA              decimal.Decimal `json:"hra"`
	HRAPercent       decimal.Decimal `json:"hra_percent"`
	Conveyance       decimal.Decimal `json:"conveyance"`
	Telephone        decimal.Decimal `json:"telephone"`
	Medical          decimal.Decimal `json:"medical"`
	SpecialAllowance decimal.Decimal `json:"special_allowance"`
	Gross            decimal.Decimal `json:"gross"`
	PFEmployee       decimal.Decimal `json:"pf_deduction"`
	PFEmployer       decimal.Decimal `json:"pf_employer"`
	ESIEmployee      decimal.Decimal `json:"esi_deduction"`
	ESIEmployer      decimal.Decimal `json:"esi_employer"`
	ProfessionalTax  decimal.Decimal `json:"professional_tax"`
	TDSMonthly       decimal.Decimal `json:"tds_monthly"`
	Net              decimal.Decimal `json:"net"`
}

var (
	two     = decimal.NewFromInt(2)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Decompose splits an annual CTC into monthly components. Employer ESI is
// assessed on monthly CTC net of employer PF; gross then excludes both
// employer contributions.
func Decompose(in Input, params Params) (*Breakdown, error) {
	if in.CTC.IsNegative() {
		return nil, apperr.InvalidInput("CTC must not be negative").WithField("ctc", "must be >= 0")
	}

	hraPercent := params.DefaultHRAPercent(in.CTC)
	if in.HRAPercent != nil {
		hraPercent = *in.HRAPercent
		if hraPercent.IsNegative() || hraPercent.GreaterThan(hundred) {
			return nil, apperr.InvalidInput("HRA percentage out of range").
				WithField("hra_percent", "must be between 0 and 100")
		}
	}

	monthlyCTC := money.Round(in.CTC.Div(twelve))
	basic := money.Round(monthlyCTC.Div(two))

	pfEmployee := money.Zero
	if in.IncludePF {
		pfEmployee = money.Percent(money.Min(basic, params.PFBaseCap), params.PFRate)
	}
	pfEmployer := pfEmployee

	esiEmployer := money.Zero
	if in.IncludeESI {
		esiEmployer = money.Percent(monthlyCTC.Sub(pfEmployer), params.ESIEmployerRate)
	}

	gross := monthlyCTC.Sub(pfEmployer).Sub(esiEmployer)

	hra := money.Percent(basic, hraPercent)

	// Defaulted fixed allowances clamp to the residual so a small CTC
	// still decomposes; explicit overrides that exceed it are an error.
	residual := gross.Sub(basic).Sub(hra)
	takeDefault := func(def decimal.Decimal, override *decimal.Decimal) decimal.Decimal {
		if override != nil {
			amount := money.Round(*override)
			residual = residual.Sub(amount)
			return amount
		}
		amount := money.Min(def, money.ClampZero(residual))
		residual = residual.Sub(amount)
		return amount
	}
	conveyance := takeDefault(params.ConveyanceDefault, in.Conveyance)
	telephone := takeDefault(params.TelephoneDefault, in.Telephone)
	medical := takeDefault(params.MedicalDefault, in.Medical)

	special := gross.Sub(basic).Sub(hra).Sub(conveyance).Sub(telephone).Sub(medical)
	if special.IsNegative() {
		return nil, apperr.InvalidInput("fixed allowances exceed residual gross").
			WithField("special_allowance", "derived special allowance would be negative")
	}

	esiEmployee := money.Zero
	if in.IncludeESI {
		esiEmployee = money.Percent(gross, params.ESIEmployeeRate)
	}

	professionalTax := params.ProfessionalTaxFor(gross)
	tdsMonthly := money.Round(in.TDSAnnual.Div(twelve))

	net := gross.Sub(pfEmployee).Sub(esiEmployee).Sub(professionalTax).Sub(tdsMonthly)

	return &Breakdown{
		MonthlyCTC:       monthlyCTC,
		Basic:            basic,
		HRA:              hra,
		HRAPercent:       hraPercent,
		Conveyance:       conveyance,
		Telephone:        telephone,
		Medical:          medical,
		SpecialAllowance: special,
		Gross:            gross,
		PFEmployee:       pfEmployee,
		PFEmployer:       pfEmployer,
		ESIEmployee:      esiEmployee,
		ESIEmployer:      esiEmployer,
		ProfessionalTax:  professionalTax,
		TDSMonthly:       tdsMonthly,
		Net:              net,
	}, nil
}
