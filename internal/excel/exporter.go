// Package excel writes the per-topic progress report as an XLSX workbook.
package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/studyagent/pkg/models"
)

const sheetName = "Progress"

var headers = []string{
	"Topic", "Sessions", "Questions", "Correct", "Average Score", "Last Studied", "Next Review",
}

// ExportUserProgress writes the progress rows to an XLSX file at path
func ExportUserProgress(path string, rows []models.ProgressRow) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %v", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %v", err)
		}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheetName, "A1", lastHeader, boldStyle)
	}

	for rowIdx, row := range rows {
		values := []interface{}{
			row.TopicTitle,
			row.TotalSessions,
			row.TotalQuestions,
			row.TotalCorrect,
			fmt.Sprintf("%.2f", row.AverageScore),
			formatTime(row.LastStudiedAt),
			formatTime(row.NextReviewAt),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %v", rowIdx+1, err)
			}
		}
	}

	f.SetColWidth(sheetName, "A", "A", 40)
	f.SetColWidth(sheetName, "B", "E", 14)
	f.SetColWidth(sheetName, "F", "G", 20)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %v", err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
