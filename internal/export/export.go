// Package export 价格历史导出 (CSV / XLSX)。
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"tapmarket/internal/model"

	"github.com/xuri/excelize/v2"
)

// historyHeader 导出列
var historyHeader = []string{"drink", "price", "recorded_at"}

// timeLayout 导出时间格式
const timeLayout = "2006-01-02 15:04:05"

// WriteHistoryCSV 将价格历史写为 CSV
func WriteHistoryCSV(w io.Writer, rows []model.PriceHistory) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(historyHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.DrinkKey,
			strconv.FormatFloat(r.Price, 'f', 2, 64),
			fmtTime(r.RecordedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteHistoryXLSX 将价格历史写为 Excel 表格
func WriteHistoryXLSX(w io.Writer, rows []model.PriceHistory) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for col, name := range historyHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range rows {
		row := i + 2
		values := []any{r.DrinkKey, r.Price, fmtTime(r.RecordedAt)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.Format(timeLayout)
}
