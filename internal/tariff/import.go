package tariff

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/customs-ai/hs-classify/internal/model"
)

// referenceColumns maps header names (lowercased, trimmed) to the fields
// of a TariffCode. Both the AHTN export headers and our own column names
// are accepted.
var referenceColumns = map[string]int{
	"hs_code":     0,
	"code":        0,
	"description": 1,
	"full_path":   2,
	"path":        2,
	"duty_rate":   3,
	"duty":        3,
}

// ReadCSV parses a tariff reference CSV with a header row into codes.
// Rows whose code column is not an 8-digit classification are skipped.
func ReadCSV(r io.Reader) ([]model.TariffCode, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "tariff: read csv header")
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var codes []model.TariffCode
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "tariff: read csv row")
		}
		if c, ok := rowToCode(record, idx); ok {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

// ReadXLSX parses the first sheet of a tariff reference workbook.
func ReadXLSX(path string) ([]model.TariffCode, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tariff: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("tariff: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("tariff: xlsx sheet is empty")
	}

	header := cellStrings(sheet.Rows[0])
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var codes []model.TariffCode
	for _, row := range sheet.Rows[1:] {
		if c, ok := rowToCode(cellStrings(row), idx); ok {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

// columnIndex resolves which column holds each field. The code and
// description columns are required; path falls back to description and
// duty to "0".
func columnIndex(header []string) (map[int]int, error) {
	idx := make(map[int]int) // field slot -> column
	for col, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if slot, ok := referenceColumns[key]; ok {
			if _, taken := idx[slot]; !taken {
				idx[slot] = col
			}
		}
	}
	if _, ok := idx[0]; !ok {
		return nil, eris.Errorf("tariff: no code column in header %v", header)
	}
	if _, ok := idx[1]; !ok {
		return nil, eris.Errorf("tariff: no description column in header %v", header)
	}
	return idx, nil
}

func rowToCode(record []string, idx map[int]int) (model.TariffCode, bool) {
	get := func(slot int) string {
		col, ok := idx[slot]
		if !ok || col >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[col])
	}

	c := model.TariffCode{
		Code:        get(0),
		Description: get(1),
		FullPath:    get(2),
		DutyRate:    get(3),
	}
	if c.FullPath == "" {
		c.FullPath = c.Description
	}
	if c.DutyRate == "" {
		c.DutyRate = "0"
	}

	// Only full 8-digit classifications enter the reference table;
	// chapter and heading rows in the source files are skipped.
	if !model.IsFullCode(c.Dotted()) {
		return model.TariffCode{}, false
	}
	return c, true
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
