package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// ExportCSV streams a pay-run's stored line items as CSV. Amounts are
// exactly the persisted two-decimal values; nothing is recomputed.
func (s *PayRunService) ExportCSV(ctx context.Context, id string, w io.Writer) error {
	run, err := s.payruns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	items, err := s.payruns.ListItems(ctx, id)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"employee_id", "employee_name", "period", "working_days", "payable_days",
		"basic", "hra", "conveyance", "telephone", "medical", "special_allowance",
		"gross", "pf_deduction", "esi_deduction", "professional_tax",
		"tds_monthly", "loan_emi", "advance_deduction", "lop_amount", "net_pay",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	periodStr := run.Period().String()
	for _, item := range items {
		row := []string{
			item.EmployeeID,
			item.EmployeeName,
			periodStr,
			fmt.Sprintf("%d", item.WorkingDays),
			fmt.Sprintf("%d", item.PayableDays),
			item.Basic.StringFixed(2),
			item.HRA.StringFixed(2),
			item.Conveyance.StringFixed(2),
			item.Telephone.StringFixed(2),
			item.Medical.StringFixed(2),
			item.SpecialAllowance.StringFixed(2),
			item.Gross.StringFixed(2),
			item.PFDeduction.StringFixed(2),
			item.ESIDeduction.StringFixed(2),
			item.ProfessionalTax.StringFixed(2),
			item.TDSMonthly.StringFixed(2),
			item.LoanEMI.StringFixed(2),
			item.AdvanceDeduction.StringFixed(2),
			item.LOPAmount.StringFixed(2),
			item.NetPay.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
