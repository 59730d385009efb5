package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vessel-cbm-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files the parser cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Parser decodes spreadsheet exports into ordered rows.
type Parser struct {
	format string
}

// NewParser creates a parser for format ("xlsx", "csv", "json"). An empty
// format selects by file extension.
func NewParser(format string) *Parser {
	return &Parser{format: strings.ToLower(strings.TrimSpace(format))}
}

// FormatFor infers the format of filename from its extension.
func FormatFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		return "xlsx"
	case ".csv":
		return "csv"
	case ".json", ".jsonl", ".ndjson":
		return "json"
	}
	return ""
}

// ParseFile reads every row of the first sheet of filename.
func (p *Parser) ParseFile(filename string) ([]models.Row, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	format := p.format
	if format == "" {
		format = FormatFor(filename)
	}
	return p.Parse(file, format)
}

// Parse decodes r in the given format.
func (p *Parser) Parse(r io.Reader, format string) ([]models.Row, error) {
	switch format {
	case "xlsx":
		return p.parseWorkbook(r)
	case "csv":
		return p.parseCSV(r)
	case "json":
		return p.parseJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// parseWorkbook reads the first sheet with raw cell values so date cells
// arrive as serial day counts.
func (p *Parser) parseWorkbook(r io.Reader) ([]models.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return recordsToRows(records[0], records[1:]), nil
}

// parseCSV parses comma separated exports
func (p *Parser) parseCSV(r io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	return recordsToRows(header, records), nil
}

// recordsToRows keys each record by the trimmed header. Columns with a
// blank header and blank cells are dropped.
func recordsToRows(header []string, records [][]string) []models.Row {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]models.Row, 0, len(records))
	for _, record := range records {
		row := make(models.Row, len(record))
		for i, raw := range record {
			if i >= len(names) || names[i] == "" {
				continue
			}
			cell := models.CellFromString(raw)
			if cell.IsEmpty() {
				continue
			}
			row[names[i]] = cell
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// parseJSON accepts an array of objects or newline-delimited objects.
func (p *Parser) parseJSON(r io.Reader) ([]models.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var objects []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&objects); err == nil {
		rows := make([]models.Row, 0, len(objects))
		for _, obj := range objects {
			rows = append(rows, models.RowFromMap(obj))
		}
		return rows, nil
	}

	return p.parseJSONLines(bytes.NewReader(data))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.Row, error) {
	var rows []models.Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")

		var obj map[string]any
		decoder := json.NewDecoder(strings.NewReader(line))
		decoder.UseNumber()
		if err := decoder.Decode(&obj); err != nil {
			return rows, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rows = append(rows, models.RowFromMap(obj))
	}

	return rows, scanner.Err()
}

var cbmMarker = regexp.MustCompile(`(?i)CBM`)

// VesselName derives the vessel identity from an export's file name: the
// extension and the first "CBM" marker are removed. A name that is only the
// marker keeps the base name.
func VesselName(filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	base := strings.TrimSpace(name)
	if loc := cbmMarker.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + name[loc[1]:]
	}
	if vessel := strings.TrimSpace(name); vessel != "" {
		return vessel
	}
	return base
}
