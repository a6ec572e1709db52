package export

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode"

	"backlogwatch/internal/overdue"

	"github.com/xuri/excelize/v2"
)

const (
	SheetOverdue = "Overdue"
	SheetTickets = "Tickets"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var columns = []string{
	"Ticket", "Title", "Status", "Severity", "Level", "Hours overdue", "Days overdue",
	"Owner", "Region", "Company", "City", "Source", "Created", "Last updated",
}

var levelFill = map[overdue.Level]string{
	overdue.LevelSevere:   "F4B6B6",
	overdue.LevelCritical: "F9D3A8",
	overdue.LevelWarning:  "FCEFA8",
	overdue.LevelStagnant: "D9D9D9",
}

// WriteTickets renders evaluated tickets as a single-sheet workbook.
func WriteTickets(sheet string, items []overdue.Evaluated) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return nil, err
	}
	levelStyles := make(map[overdue.Level]int, len(levelFill))
	for level, color := range levelFill {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}})
		if err != nil {
			return nil, err
		}
		levelStyles[level] = id
	}

	for i, e := range items {
		rowNum := i + 2
		row := []any{
			e.ID, e.Title, e.Status, e.Severity, string(e.Overdue.Level),
			e.Overdue.HoursOverdue, e.Overdue.DaysOverdue,
			e.Owner, e.Region, e.Company, e.City, e.Source,
			cellTime(e.CreatedAt), cellTime(e.LastUpdatedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", rowNum, err)
		}
		if style, ok := levelStyles[e.Overdue.Level]; ok {
			levelCell, _ := excelize.CoordinatesToCellName(5, rowNum)
			_ = f.SetCellStyle(sheet, levelCell, levelCell, style)
		}
		first, _ := excelize.CoordinatesToCellName(13, rowNum)
		last, _ := excelize.CoordinatesToCellName(14, rowNum)
		_ = f.SetCellStyle(sheet, first, last, dateStyle)
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "M", "N", 18)
	if err := f.AutoFilter(sheet, "A1:"+lastCol+"1", nil); err != nil {
		return nil, fmt.Errorf("set autofilter: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf, nil
}

func cellTime(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t
}

// AlertFileName builds the attachment name overdue_<backlog>_<yyyymmdd>.xlsx.
func AlertFileName(backlogName string, day time.Time) string {
	return fmt.Sprintf("overdue_%s_%s.xlsx", slug(backlogName), day.Format("20060102"))
}

// ContentDisposition formats an attachment disposition for fileName. Names
// outside ASCII use the RFC 2231 filename* form.
func ContentDisposition(fileName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}

func slug(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "backlog"
	}
	return out
}
