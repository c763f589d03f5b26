package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

var workbookHeaders = []string{
	"Department", "Employee", "Position", "KPI", "Value", "Grade", "Score", "Weight", "Weighted",
}

// BuildWorkbook renders the report as an xlsx workbook: one row per
// KPI entry, a bold total row per employee.
func BuildWorkbook(rep *MonthlyReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("KPI %04d-%02d", rep.Period.Year, rep.Period.Month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	totalStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})

	for i, h := range workbookHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	row := 2
	for _, er := range rep.Rows {
		for _, entry := range er.Entries {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), er.DepartmentName)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), er.EmployeeName)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), er.PositionName)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), entry.KpiName)
			if entry.Value != nil {
				f.SetCellValue(sheet, fmt.Sprintf("E%d", row), *entry.Value)
			}
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), entry.Grade)
			if entry.Score != nil {
				f.SetCellValue(sheet, fmt.Sprintf("G%d", row), *entry.Score)
			}
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), entry.Weight)
			row++
		}

		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), er.EmployeeName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("Total (%d of %d KPIs)", er.Aggregation.Counted, len(er.Entries)))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), er.Aggregation.Total)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), totalStyle)
		row++
	}

	colWidths := []float64{18, 22, 18, 28, 12, 8, 8, 8, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
