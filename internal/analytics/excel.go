package analytics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelReport builds a two-sheet workbook: per-manager performance for
// the period and the current dashboard snapshot. The caller owns the
// returned file and closes it.
func (r *Reporter) ExcelReport(ctx context.Context, days int) (*excelize.File, error) {
	report, err := r.Performance(ctx, days)
	if err != nil {
		return nil, err
	}
	stats, err := r.Dashboard(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()

	const perfSheet = "Managers"
	index, err := f.NewSheet(perfSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Name", "Total chats", "Active chats",
		"Bound chats", "Avg rating", "Ratings", "Positive", "Negative"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(perfSheet, cell, h)
	}
	for row, p := range report {
		values := []interface{}{p.ManagerID, p.Name, p.TotalChats,
			p.ActiveCounter, p.BoundChats, p.AvgRating, p.RatingCount,
			p.PositiveRatings, p.NegativeRatings}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(perfSheet, cell, v)
		}
	}

	const statsSheet = "Summary"
	if _, err := f.NewSheet(statsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Generated", time.Now().Format("2006-01-02 15:04")},
		{"Period, days", days},
		{"Managers", stats.TotalManagers},
		{"Available managers", stats.AvailableManagers},
		{"Pending chats", stats.PendingChats},
		{"Active chats", stats.ActiveChats},
	}
	for row, pair := range summary {
		for col, v := range pair {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+1)
			f.SetCellValue(statsSheet, cell, v)
		}
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// SaveExcelReport writes the workbook to a uniquely named temp file
// and returns its path. The caller removes the file after sending it.
func (r *Reporter) SaveExcelReport(ctx context.Context, days int) (string, error) {
	f, err := r.ExcelReport(ctx, days)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(os.TempDir(),
		fmt.Sprintf("manager-report-%s.xlsx", uuid.New().String()))
	if err := f.SaveAs(path); err != nil {
		r.logger.Error("Failed to save excel report",
			zap.Error(err),
			zap.String("path", path))
		return "", fmt.Errorf("save excel report: %w", err)
	}
	return path, nil
}
