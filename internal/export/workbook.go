package export

import (
	"bytes"
	"fmt"
	"time"

	"vessel-cbm-monitor/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildXLSX renders rows into a single-sheet workbook.
func BuildXLSX(sheet string, rows []Record, columns []string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	if len(columns) == 0 {
		columns = rows[0].Columns()
	}

	f := excelize.NewFile()
	defer f.Close()
	if sheet == "" {
		sheet = "data"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, col)
	}
	for r, row := range rows {
		for i, col := range columns {
			v, ok := row.Get(col)
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMissingReportPDF renders the staleness list as a printable report.
func BuildMissingReportPDF(items []models.MissingEquipment, thresholdDays int, generated time.Time) ([]byte, error) {
	if len(items) == 0 {
		return nil, ErrNothingToExport
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Missing Readings Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Threshold: %d days", thresholdDays))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Items: %d", len(items)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(40, 6, "Vessel", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Equipment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Component", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Last Reading", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Days", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		pdf.CellFormat(40, 6, item.Vessel, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, item.EquipmentCode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, item.Component, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, item.LastReading.UTC().Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.DaysSinceLastReading), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
