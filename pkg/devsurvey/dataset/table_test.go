package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

func TestNewResponseTableLengthMismatch(t *testing.T) {
	schema := Schema{Country: "Country", Compensation: "Comp"}
	_, err := NewResponseTable(schema,
		map[string][]NullString{"Country": Strs("A", "B")},
		map[string][]NullFloat{"Comp": Floats(1)},
	)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResponseTableCopies(t *testing.T) {
	schema := Schema{Country: "Country"}
	table, err := NewResponseTable(schema, map[string][]NullString{"Country": Strs("A", "B")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	col := table.Country()
	col[0] = Str("mutated")

	if table.Country()[0].String != "A" {
		t.Error("accessor should return a copy")
	}
}

func TestResponseTableAbsentRole(t *testing.T) {
	table, err := NewResponseTable(Schema{Country: "Country"}, map[string][]NullString{"Country": Strs("A")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	comp := table.Compensation()
	if len(comp) != 1 || comp[0].Valid {
		t.Errorf("absent role column should be all null, got %+v", comp)
	}
}

func TestFilter(t *testing.T) {
	schema := Schema{Country: "Country", Compensation: "Comp"}
	table, err := NewResponseTable(schema,
		map[string][]NullString{"Country": Strs("A", "", "C")},
		map[string][]NullFloat{"Comp": Floats(1, math.NaN(), 3)},
	)
	if err != nil {
		t.Fatal(err)
	}

	countries := table.Country()
	kept := table.Filter(func(row int) bool { return countries[row].Valid })

	if kept.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", kept.Len())
	}
	if kept.Compensation()[1].Float64 != 3 {
		t.Errorf("columns should stay aligned, got %+v", kept.Compensation())
	}
	if table.Len() != 3 {
		t.Error("source table should be untouched")
	}
}

func TestSchemaColumnsLeaveInputIntact(t *testing.T) {
	multi := []string{"LanguageHaveWorkedWith", "Country", "DevType", "DevType"}
	schema := Schema{Country: "Country", MultiValue: multi}

	got := schema.textColumns()
	want := []string{"Country", "LanguageHaveWorkedWith", "DevType"}
	if len(got) != len(want) {
		t.Fatalf("textColumns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("textColumns = %v, want %v", got, want)
		}
	}

	in := []string{"a", "b", "a", "c"}
	dedupe(in)
	if in[2] != "a" || in[3] != "c" {
		t.Errorf("dedupe modified its input: %v", in)
	}
	if multi[1] != "Country" || multi[3] != "DevType" {
		t.Errorf("schema MultiValue modified: %v", multi)
	}
}
