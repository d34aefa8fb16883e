package export

import (
	"fmt"
	"io"

	"kopiaku-reconciliation-backend/internal/services/matching"

	"github.com/xuri/excelize/v2"
)

const timeFormat = "02/01/2006 15:04:05"

// WriteReport renders a reconciliation session as an XLSX workbook with a
// summary sheet plus one sheet per classification group.
func WriteReport(sess *matching.Session, w io.Writer) error {
	rows, imported, unmatchedDB := sess.Snapshot()
	stats := sess.Stats()

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Summary")
	writeSummary(f, stats)

	writeRowSheet(f, "CSV Rows", rows)
	writeDbSheet(f, "Unmatched DB", unmatchedDB)
	writeImportedSheet(f, "Already Imported", imported)

	return f.Write(w)
}

func writeSummary(f *excelize.File, stats matching.Stats) {
	lines := []struct {
		label string
		value int
	}{
		{"CSV Total", stats.CsvTotal},
		{"DB Total", stats.DbTotal},
		{"Auto Matched", stats.AutoMatched},
		{"Manual Matched", stats.ManualMatched},
		{"Create New", stats.CreateNew},
		{"Needs Review", stats.NeedsReview},
		{"Unmatched CSV", stats.UnmatchedCsv},
		{"Unmatched DB", stats.UnmatchedDb},
		{"Already Imported", stats.AlreadyImported},
	}
	f.SetCellValue("Summary", "A1", "Reconciliation Summary")
	for i, line := range lines {
		f.SetCellValue("Summary", fmt.Sprintf("A%d", i+3), line.label)
		f.SetCellValue("Summary", fmt.Sprintf("B%d", i+3), line.value)
	}
}

func writeRowSheet(f *excelize.File, name string, rows []matching.Row) {
	f.NewSheet(name)
	headers := []string{"Status", "Order ID", "Amount", "Nett Amount", "Transaction Time", "Matched Transaction"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(name, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.Status,
			row.Csv.OrderID,
			row.Csv.Amount,
			netAmountCell(row.Csv.NetAmount),
			row.Csv.TransactionTime.Format(timeFormat),
			row.MatchedID,
		}
		setRow(f, name, i+2, values)
	}
}

func writeDbSheet(f *excelize.File, name string, records []matching.DbRecord) {
	f.NewSheet(name)
	headers := []string{"Transaction ID", "Order ID", "Total Amount", "Transaction Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(name, cell, h)
	}
	for i, rec := range records {
		setRow(f, name, i+2, []interface{}{
			rec.ID,
			rec.OrderID,
			rec.TotalAmount,
			rec.TransactionDate.Format(timeFormat),
		})
	}
}

func writeImportedSheet(f *excelize.File, name string, records []matching.CsvRecord) {
	f.NewSheet(name)
	headers := []string{"Order ID", "Amount", "Nett Amount", "Transaction Time"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(name, cell, h)
	}
	for i, rec := range records {
		setRow(f, name, i+2, []interface{}{
			rec.OrderID,
			rec.Amount,
			netAmountCell(rec.NetAmount),
			rec.TransactionTime.Format(timeFormat),
		})
	}
}

func setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
		f.SetCellValue(sheet, cell, v)
	}
}

func netAmountCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
