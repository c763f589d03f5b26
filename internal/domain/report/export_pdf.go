package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// BuildPDF renders the report as a single PDF: one block per employee
// with their KPI lines and weighted total.
func BuildPDF(rep *MonthlyReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("KPI Report %04d-%02d", rep.Period.Year, rep.Period.Month))
	pdf.Ln(12)

	for _, er := range rep.Rows {
		pdf.SetFont("Helvetica", "B", 12)
		header := er.EmployeeName + " - " + er.PositionName
		if er.DepartmentName != "" {
			header += " (" + er.DepartmentName + ")"
		}
		pdf.Cell(0, 8, header)
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 10)
		for _, entry := range er.Entries {
			value := "-"
			if entry.Value != nil {
				value = *entry.Value
			}
			scoreText := "-"
			if entry.Score != nil {
				scoreText = fmt.Sprintf("%.0f", *entry.Score)
			}
			pdf.Cell(0, 6, fmt.Sprintf("%s: value %s, grade %s, score %s, weight %s",
				entry.KpiName, value, entry.Grade, scoreText, entry.Weight))
			pdf.Ln(6)
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 7, fmt.Sprintf("Weighted total: %.2f (%d of %d KPIs counted)",
			er.Aggregation.Total, er.Aggregation.Counted, len(er.Entries)))
		pdf.Ln(10)
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.Cell(0, 6, "Generated "+rep.GeneratedAt.Format("2006-01-02 15:04 MST"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
