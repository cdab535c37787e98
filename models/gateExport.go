package models

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportGateReportExcel writes a gate report to an xlsx workbook, one row per
// check, for sharing with finance/ops outside the API.
func ExportGateReportExcel(report *GateReport, path string) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheet, "A1", "Check")
	f.SetCellValue(sheet, "B1", "Result")
	f.SetCellValue(sheet, "C1", "Value")
	f.SetCellValue(sheet, "D1", "Threshold")
	f.SetCellValue(sheet, "E1", "Detail")

	// Add data
	for i, c := range report.Checks {
		row := i + 2
		result := GateResultPass
		if !c.Passed {
			result = GateResultFail
		}
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), c.Name)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), result)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), c.Value)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), c.Threshold)
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), c.Detail)
	}

	summaryRow := len(report.Checks) + 3
	f.SetCellValue(sheet, "A"+fmt.Sprint(summaryRow), "Overall")
	f.SetCellValue(sheet, "B"+fmt.Sprint(summaryRow), report.Result)

	return f.SaveAs(path)
}
