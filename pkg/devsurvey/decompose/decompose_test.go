package decompose

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		cell dataset.NullString
		want []string
	}{
		{"null", dataset.NullString{}, nil},
		{"empty", dataset.Str(""), nil},
		{"delimiters only", dataset.Str(";;;"), nil},
		{"whitespace and delimiters", dataset.Str(" ; \t;  "), nil},
		{"simple", dataset.Str("a;b;c"), []string{"a", "b", "c"}},
		{"spaced", dataset.Str("a ; b ;c"), []string{"a", "b", "c"}},
		{"leading and trailing", dataset.Str(";a;b;"), []string{"a", "b"}},
		{"inner spaces kept", dataset.Str("Bash/Shell (all shells); Visual Basic (.Net)"), []string{"Bash/Shell (all shells)", "Visual Basic (.Net)"}},
		{"no dedup", dataset.Str("Go;Go"), []string{"Go", "Go"}},
		{"single", dataset.Str("Rust"), []string{"Rust"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.cell)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.cell.String, got, tt.want)
			}
			for _, tok := range got {
				if tok == "" {
					t.Errorf("empty token in %q", got)
				}
			}
		})
	}
}

func TestDecomposePreservesRowOrder(t *testing.T) {
	cells := dataset.Strs("b;a", "", "c")
	got := Decompose(cells)

	want := [][]string{{"b", "a"}, nil, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decompose = %q, want %q", got, want)
	}
}

func newTable(t *testing.T) *dataset.ResponseTable {
	t.Helper()
	schema := dataset.Schema{Country: "Country", MultiValue: []string{"Lang"}}
	table, err := dataset.NewResponseTable(schema, map[string][]dataset.NullString{
		"Country": dataset.Strs("Germany", "", "France", "Germany"),
		"Lang":    dataset.Strs("Go;Python", "Rust", "", "Python; Go ;Go"),
	}, nil)
	if err != nil {
		t.Fatalf("NewResponseTable: %v", err)
	}
	return table
}

func TestExplode(t *testing.T) {
	rows, err := Explode(newTable(t), "Lang", "Country")
	if err != nil {
		t.Fatalf("Explode: %v", err)
	}

	if len(rows) != 6 {
		t.Fatalf("expected 6 exploded rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Row != 0 || rows[0].Token != "Go" || rows[0].Group.String != "Germany" {
		t.Errorf("row 0: got %+v", rows[0])
	}
	if rows[2].Row != 1 || rows[2].Group.Valid {
		t.Errorf("null group should stay null: %+v", rows[2])
	}
	for _, r := range rows {
		if r.Row == 2 {
			t.Errorf("row with empty cell should not explode: %+v", r)
		}
	}
}

func TestExplodeUnknownColumn(t *testing.T) {
	_, err := Explode(newTable(t), "Nope", "")
	if !errors.Is(err, internalerr.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	_, err = Explode(newTable(t), "Lang", "Nope")
	if !errors.Is(err, internalerr.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn for group, got %v", err)
	}
}

func TestExplodeRegroupRoundTrip(t *testing.T) {
	table := newTable(t)
	rows, err := Explode(table, "Lang", "")
	if err != nil {
		t.Fatal(err)
	}
	regrouped := Regroup(rows)

	cells, _ := table.Text("Lang")
	for i, cell := range cells {
		want := Split(cell)
		got := regrouped[i]
		sort.Strings(want)
		sort.Strings(got)
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("row %d: regrouped %q, want %q", i, got, want)
		}
	}
	if len(regrouped) != 3 {
		t.Errorf("expected 3 rows with tokens, got %d", len(regrouped))
	}
}
