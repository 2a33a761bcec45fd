package ovd

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// column describes where one spreadsheet column lands in a Record.
type column struct {
	name      string
	canonical bool
}

// Parse reads the first sheet of an xlsx workbook. The first non-blank row
// is the header; every following non-blank row becomes a Record.
// Headers outside the canonical dictionary are kept under a derived key in
// Record.Extra and listed in Metadata.UnmappedHeaders.
func Parse(data []byte) (*ParseResult, error) {
	if len(data) == 0 {
		return nil, &FormatError{Reason: "empty file"}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{Reason: "cannot read sheet " + sheet, Err: err}
	}

	headerRow := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, &FormatError{Reason: "missing header row"}
	}

	columns, unmapped := resolveColumns(rows[headerRow])

	result := &ParseResult{Metadata: Metadata{SheetName: sheet, UnmappedHeaders: unmapped}}
	seenVessel := make(map[string]bool)

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}

		rec := Record{
			Row:    i - headerRow,
			Fields: make(map[string]string),
		}
		for c, cell := range row {
			if c >= len(columns) || columns[c].name == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			col := columns[c]
			if col.canonical {
				if _, dup := rec.Fields[col.name]; !dup {
					rec.Fields[col.name] = value
				}
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[col.name] = value
		}

		if imo := rec.IMO(); imo != "" && !seenVessel[imo] {
			seenVessel[imo] = true
			result.Metadata.Vessels = append(result.Metadata.Vessels, imo)
		}
		if day := NormalizeDate(rec.Fields[FieldDateUTC]); day != "" {
			dr := &result.Metadata.DateRange
			if dr.Start == "" || day < dr.Start {
				dr.Start = day
			}
			if dr.End == "" || day > dr.End {
				dr.End = day
			}
		}

		result.Records = append(result.Records, rec)
	}

	if len(result.Records) == 0 {
		return nil, &FormatError{Reason: "no data rows below header"}
	}
	result.Metadata.RecordCount = len(result.Records)

	return result, nil
}

// resolveColumns maps header cells to canonical fields or derived keys.
func resolveColumns(header []string) ([]column, []string) {
	columns := make([]column, len(header))
	var unmapped []string
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			continue
		}
		if f, ok := Lookup(h); ok {
			columns[i] = column{name: f.Name, canonical: true}
			continue
		}
		key := derivedKey(h)
		if key == "" {
			continue
		}
		columns[i] = column{name: key}
		unmapped = append(unmapped, key)
	}
	return columns, unmapped
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
