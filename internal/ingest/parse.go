package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backlogwatch/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnknownSource     = errors.New("unknown ticket source")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoHeader          = errors.New("file has no header row")
	ErrMissingIDColumn   = errors.New("no ticket ID column found")
)

// Report summarises one import.
type Report struct {
	Source         string  `json:"source"`
	Rows           int     `json:"rows"`
	Imported       int     `json:"imported"`
	Skipped        int     `json:"skipped"`
	SkippedRows    []int   `json:"skipped_rows,omitempty"`
	Duplicates     int     `json:"duplicates"`
	InvalidDates   int     `json:"invalid_dates"`
	MissingColumns []Field `json:"missing_columns,omitempty"`
}

type Parser struct {
	Mapping  Mapping
	Location *time.Location
}

func NewParser(m Mapping, loc *time.Location) *Parser {
	if m == nil {
		m = DefaultMapping()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{Mapping: m, Location: loc}
}

// Parse reads an .xlsx or .csv export of the given source into tickets.
// Rows without an ID are skipped; a repeated ID keeps the last row.
func (p *Parser) Parse(source, filename string, r io.Reader) ([]domain.Ticket, Report, error) {
	source = strings.TrimSpace(source)
	report := Report{Source: source}
	aliases, ok := p.Mapping[source]
	if !ok {
		return nil, report, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".csv", ".txt":
		rows, err = readCSV(r)
	default:
		return nil, report, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, report, err
	}

	headerAt := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, report, ErrNoHeader
	}
	cols := resolveColumns(aliases, rows[headerAt])
	if cols[FieldID] < 0 {
		return nil, report, ErrMissingIDColumn
	}
	for _, f := range allFields {
		if cols[f] < 0 {
			report.MissingColumns = append(report.MissingColumns, f)
		}
	}

	var tickets []domain.Ticket
	position := make(map[string]int)
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		report.Rows++
		cell := func(f Field) string {
			idx := cols[f]
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		id := cell(FieldID)
		if id == "" {
			report.Skipped++
			report.SkippedRows = append(report.SkippedRows, i+1)
			continue
		}
		t := domain.Ticket{
			ID:       id,
			Title:    cell(FieldTitle),
			Status:   cell(FieldStatus),
			Severity: NormalizeSeverity(cell(FieldSeverity)),
			Owner:    cell(FieldOwner),
			Region:   cell(FieldRegion),
			Company:  cell(FieldCompany),
			City:     cell(FieldCity),
			Source:   source,
		}
		var okCreated, okUpdated bool
		t.CreatedAt, okCreated = p.parseDate(cell(FieldCreatedAt))
		t.LastUpdatedAt, okUpdated = p.parseDate(cell(FieldLastUpdatedAt))
		if !okCreated || !okUpdated {
			report.InvalidDates++
		}

		if pos, dup := position[id]; dup {
			report.Duplicates++
			tickets[pos] = t
			continue
		}
		position[id] = len(tickets)
		tickets = append(tickets, t)
	}
	report.Imported = len(tickets)
	return tickets, report, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	// Raw values keep dates as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ; , and tab on the first line.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte(","))
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"2006/01/02 15:04:05",
	"02/Jan/06 3:04 PM",
	"02/Jan/06 15:04",
}

// parseDate returns the zero time and ok=true for an empty value, and the
// zero time with ok=false when the value cannot be read.
func (p *Parser) parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, p.Location); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, p.Location), true
		}
	}
	return time.Time{}, false
}

var severityWords = map[string]string{
	"highest": "1", "blocker": "1", "critical": "1", "critique": "1", "urgent": "1",
	"high": "2", "major": "2", "haute": "2", "majeure": "2", "elevee": "2",
	"medium": "3", "moderate": "3", "normal": "3", "moyenne": "3",
	"low": "4", "lowest": "4", "minor": "4", "trivial": "4", "planning": "4", "basse": "4", "mineure": "4",
}

// NormalizeSeverity maps priority labels ("Highest", "1 - Critical", "P2",
// "Sev3") to numeric severity codes. P0/Sev0 count as severity 1. Cells with
// no visible content map to "". Unrecognised values are returned trimmed.
func NormalizeSeverity(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	key := normalizeHeader(v)
	if key == "" {
		return ""
	}
	for _, prefix := range []string{"sev", "p"} {
		if rest, ok := strings.CutPrefix(key, prefix); ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			key = rest
			break
		}
	}
	if key[0] >= '0' && key[0] <= '9' {
		end := 1
		for end < len(key) && key[end] >= '0' && key[end] <= '9' {
			end++
		}
		n, _ := strconv.Atoi(key[:end])
		switch {
		case n < 1:
			n = 1
		case n >= 5:
			n = 4
		}
		return strconv.Itoa(n)
	}
	if code, ok := severityWords[strings.Fields(key)[0]]; ok {
		return code
	}
	return v
}
