package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

// NullString is a text cell that may be absent.
type NullString struct {
	String string
	Valid  bool
}

// NullFloat is a numeric cell that may be absent.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Str returns a valid NullString.
func Str(s string) NullString { return NullString{String: s, Valid: true} }

// Float returns a valid NullFloat.
func Float(f float64) NullFloat { return NullFloat{Float64: f, Valid: true} }

// MarshalJSON encodes a null cell as JSON null.
func (s NullString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.String)
}

// MarshalJSON encodes a null cell as JSON null.
func (f NullFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Float64)
}

// Strs builds a text column; empty strings become nulls, matching how the loader reads blank cells.
func Strs(vals ...string) []NullString {
	out := make([]NullString, len(vals))
	for i, v := range vals {
		if v != "" {
			out[i] = Str(v)
		}
	}
	return out
}

// Floats builds a numeric column; NaN becomes null.
func Floats(vals ...float64) []NullFloat {
	out := make([]NullFloat, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			out[i] = Float(v)
		}
	}
	return out
}

// Schema names the survey columns the pipeline relies on.
// Role columns left empty are treated as absent (all null).
type Schema struct {
	ResponseID   string
	Country      string
	OrgSize      string
	Age          string
	Compensation string
	Experience   string
	JobSat       string

	// Numeric columns are coerced to floats; unparseable cells become null.
	Numeric []string
	// MultiValue columns hold semicolon-delimited responses.
	MultiValue []string
	// Text columns are kept verbatim.
	Text []string
}

// DefaultSchema matches the public Stack Overflow developer survey export.
func DefaultSchema() Schema {
	return Schema{
		ResponseID:   "ResponseId",
		Country:      "Country",
		OrgSize:      "OrgSize",
		Age:          "Age",
		Compensation: "ConvertedCompYearly",
		Experience:   "YearsCodePro",
		JobSat:       "JobSat",
		Numeric:      []string{"YearsCode", "WorkExp"},
		MultiValue: []string{
			"LanguageHaveWorkedWith",
			"LanguageWantToWorkWith",
			"DatabaseHaveWorkedWith",
			"DatabaseWantToWorkWith",
			"WebframeHaveWorkedWith",
			"WebframeWantToWorkWith",
			"PlatformHaveWorkedWith",
			"PlatformWantToWorkWith",
			"DevType",
			"Employment",
			"LearnCode",
			"LearnCodeOnline",
		},
		Text: []string{"MainBranch", "EdLevel", "RemoteWork", "Industry", "Currency"},
	}
}

// textColumns returns every column stored as text, role columns first.
func (s Schema) textColumns() []string {
	var out []string
	for _, c := range []string{s.ResponseID, s.Country, s.OrgSize, s.Age} {
		if c != "" {
			out = append(out, c)
		}
	}
	out = append(out, s.MultiValue...)
	out = append(out, s.Text...)
	return dedupe(out)
}

// numericColumns returns every column coerced to floats.
func (s Schema) numericColumns() []string {
	var out []string
	for _, c := range []string{s.Compensation, s.Experience, s.JobSat} {
		if c != "" {
			out = append(out, c)
		}
	}
	out = append(out, s.Numeric...)
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ResponseTable holds survey responses column by column.
// It is immutable once built; accessors return copies.
type ResponseTable struct {
	n       int
	schema  Schema
	text    map[string][]NullString
	numeric map[string][]NullFloat
}

// NewResponseTable validates that every schema column is present with the same length.
func NewResponseTable(schema Schema, text map[string][]NullString, numeric map[string][]NullFloat) (*ResponseTable, error) {
	t := &ResponseTable{
		n:       -1,
		schema:  schema,
		text:    make(map[string][]NullString, len(text)),
		numeric: make(map[string][]NullFloat, len(numeric)),
	}
	for _, name := range schema.textColumns() {
		col, ok := text[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingColumn, name)
		}
		if err := t.checkLen(name, len(col)); err != nil {
			return nil, err
		}
		t.text[name] = slices.Clone(col)
	}
	for _, name := range schema.numericColumns() {
		col, ok := numeric[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingColumn, name)
		}
		if err := t.checkLen(name, len(col)); err != nil {
			return nil, err
		}
		t.numeric[name] = slices.Clone(col)
	}
	if t.n < 0 {
		t.n = 0
	}
	return t, nil
}

func (t *ResponseTable) checkLen(name string, n int) error {
	if t.n < 0 {
		t.n = n
		return nil
	}
	if n != t.n {
		return fmt.Errorf("%w: column %s has %d rows, want %d", internalerr.ErrInvalidInput, name, n, t.n)
	}
	return nil
}

// Len returns the number of responses.
func (t *ResponseTable) Len() int { return t.n }

// Schema returns the schema the table was built with.
func (t *ResponseTable) Schema() Schema { return t.schema }

// Text returns a copy of a text column.
func (t *ResponseTable) Text(name string) ([]NullString, error) {
	col, ok := t.text[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrUnknownColumn, name)
	}
	return slices.Clone(col), nil
}

// Numeric returns a copy of a numeric column.
func (t *ResponseTable) Numeric(name string) ([]NullFloat, error) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrUnknownColumn, name)
	}
	return slices.Clone(col), nil
}

// Country returns the country column, all null when the schema has none.
func (t *ResponseTable) Country() []NullString { return t.role(t.schema.Country) }

// OrgSize returns the organization size column.
func (t *ResponseTable) OrgSize() []NullString { return t.role(t.schema.OrgSize) }

// Age returns the age column.
func (t *ResponseTable) Age() []NullString { return t.role(t.schema.Age) }

// ResponseID returns the response id column.
func (t *ResponseTable) ResponseID() []NullString { return t.role(t.schema.ResponseID) }

// Compensation returns yearly compensation converted to a common currency.
func (t *ResponseTable) Compensation() []NullFloat { return t.roleNumeric(t.schema.Compensation) }

// Experience returns years of professional coding experience.
func (t *ResponseTable) Experience() []NullFloat { return t.roleNumeric(t.schema.Experience) }

// JobSat returns the job satisfaction score.
func (t *ResponseTable) JobSat() []NullFloat { return t.roleNumeric(t.schema.JobSat) }

func (t *ResponseTable) role(name string) []NullString {
	if name == "" {
		return make([]NullString, t.n)
	}
	return slices.Clone(t.text[name])
}

func (t *ResponseTable) roleNumeric(name string) []NullFloat {
	if name == "" {
		return make([]NullFloat, t.n)
	}
	return slices.Clone(t.numeric[name])
}

// Filter returns a new table holding only the rows for which keep returns true.
func (t *ResponseTable) Filter(keep func(row int) bool) *ResponseTable {
	var rows []int
	for i := 0; i < t.n; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	out := &ResponseTable{
		n:       len(rows),
		schema:  t.schema,
		text:    make(map[string][]NullString, len(t.text)),
		numeric: make(map[string][]NullFloat, len(t.numeric)),
	}
	for name, col := range t.text {
		dst := make([]NullString, len(rows))
		for j, r := range rows {
			dst[j] = col[r]
		}
		out.text[name] = dst
	}
	for name, col := range t.numeric {
		dst := make([]NullFloat, len(rows))
		for j, r := range rows {
			dst[j] = col[r]
		}
		out.numeric[name] = dst
	}
	return out
}

// CountrySchema names the cost-of-living table columns.
type CountrySchema struct {
	Country         string
	CostOfLiving    string
	CostPlusRent    string
	PurchasingPower string
}

// DefaultCountrySchema matches the Numbeo cost of living by country export.
func DefaultCountrySchema() CountrySchema {
	return CountrySchema{
		Country:         "Country",
		CostOfLiving:    "Cost of Living Index",
		CostPlusRent:    "Cost of Living Plus Rent Index",
		PurchasingPower: "Local Purchasing Power Index",
	}
}

// CountryTable holds one row per country.
type CountryTable struct {
	Country         []string
	CostOfLiving    []NullFloat
	CostPlusRent    []NullFloat
	PurchasingPower []NullFloat
}

// Len returns the number of countries.
func (c *CountryTable) Len() int { return len(c.Country) }

// CountryRow is a convenience for building small tables.
type CountryRow struct {
	Country         string
	CostOfLiving    NullFloat
	CostPlusRent    NullFloat
	PurchasingPower NullFloat
}

// NewCountryTable builds a table from rows.
func NewCountryTable(rows ...CountryRow) *CountryTable {
	c := &CountryTable{
		Country:         make([]string, 0, len(rows)),
		CostOfLiving:    make([]NullFloat, 0, len(rows)),
		CostPlusRent:    make([]NullFloat, 0, len(rows)),
		PurchasingPower: make([]NullFloat, 0, len(rows)),
	}
	for _, r := range rows {
		c.Country = append(c.Country, r.Country)
		c.CostOfLiving = append(c.CostOfLiving, r.CostOfLiving)
		c.CostPlusRent = append(c.CostPlusRent, r.CostPlusRent)
		c.PurchasingPower = append(c.PurchasingPower, r.PurchasingPower)
	}
	return c
}

// Row returns row i.
func (c *CountryTable) Row(i int) CountryRow {
	return CountryRow{
		Country:         c.Country[i],
		CostOfLiving:    c.CostOfLiving[i],
		CostPlusRent:    c.CostPlusRent[i],
		PurchasingPower: c.PurchasingPower[i],
	}
}
