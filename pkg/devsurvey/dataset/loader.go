package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

// nullTokens are the cell values read as missing, the same set pandas treats as NA by default.
var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
}

func parseText(raw string) NullString {
	v := strings.TrimSpace(raw)
	if _, ok := nullTokens[v]; ok {
		return NullString{}
	}
	return Str(v)
}

// parseNumber coerces a cell to a float. Anything unparseable ("Less than 1 year")
// or non-finite ("Inf", "NaN") is null.
func parseNumber(raw string) NullFloat {
	v := strings.TrimSpace(raw)
	if _, ok := nullTokens[v]; ok {
		return NullFloat{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return NullFloat{}
	}
	return Float(f)
}

// LoadResponses reads a survey CSV file.
func LoadResponses(ctx context.Context, path string, schema Schema) (*ResponseTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open survey %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadResponses(ctx, f, schema)
	if err != nil {
		return nil, fmt.Errorf("read survey %s: %w", path, err)
	}
	return t, nil
}

// ReadResponses parses survey CSV data. Only schema columns are kept.
// A header lacking a schema column is rejected before any row is read.
func ReadResponses(ctx context.Context, r io.Reader, schema Schema) (*ResponseTable, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	textCols := schema.textColumns()
	numCols := schema.numericColumns()
	textIdx, err := indexColumns(header, textCols)
	if err != nil {
		return nil, err
	}
	numIdx, err := indexColumns(header, numCols)
	if err != nil {
		return nil, err
	}

	text := make(map[string][]NullString, len(textCols))
	for _, c := range textCols {
		text[c] = nil
	}
	numeric := make(map[string][]NullFloat, len(numCols))
	for _, c := range numCols {
		numeric[c] = nil
	}

	for row := 0; ; row++ {
		if row%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		for i, c := range textCols {
			text[c] = append(text[c], parseText(rec[textIdx[i]]))
		}
		for i, c := range numCols {
			numeric[c] = append(numeric[c], parseNumber(rec[numIdx[i]]))
		}
	}

	return NewResponseTable(schema, text, numeric)
}

// LoadCountries reads a cost-of-living CSV file.
func LoadCountries(ctx context.Context, path string, schema CountrySchema) (*CountryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cost of living %s: %w", path, err)
	}
	defer f.Close()

	c, err := ReadCountries(ctx, f, schema)
	if err != nil {
		return nil, fmt.Errorf("read cost of living %s: %w", path, err)
	}
	return c, nil
}

// ReadCountries parses cost-of-living CSV data.
func ReadCountries(ctx context.Context, r io.Reader, schema CountrySchema) (*CountryTable, error) {
	reader := csv.NewReader(r)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return buildCountries(header, rows, schema)
}

// buildCountries maps raw rows onto the country schema. Rows without a country name are skipped.
func buildCountries(header []string, rows [][]string, schema CountrySchema) (*CountryTable, error) {
	idx, err := indexColumns(header, []string{schema.Country, schema.CostOfLiving, schema.CostPlusRent, schema.PurchasingPower})
	if err != nil {
		return nil, err
	}
	c := &CountryTable{}
	for _, rec := range rows {
		if len(rec) < len(header) {
			return nil, fmt.Errorf("%w: row has %d cells, header has %d", internalerr.ErrInvalidInput, len(rec), len(header))
		}
		name := parseText(rec[idx[0]])
		if !name.Valid {
			continue
		}
		c.Country = append(c.Country, name.String)
		c.CostOfLiving = append(c.CostOfLiving, parseNumber(rec[idx[1]]))
		c.CostPlusRent = append(c.CostPlusRent, parseNumber(rec[idx[2]]))
		c.PurchasingPower = append(c.PurchasingPower, parseNumber(rec[idx[3]]))
	}
	return c, nil
}

func readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", internalerr.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out, nil
}

// indexColumns resolves column names to header positions, reporting every missing one.
func indexColumns(header []string, names []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		p, ok := pos[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		idx[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}
