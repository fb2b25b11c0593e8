package join

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

func responses(t *testing.T, countries []string, comp []float64) *dataset.ResponseTable {
	t.Helper()
	schema := dataset.Schema{Country: "Country", Compensation: "Comp"}
	table, err := dataset.NewResponseTable(schema,
		map[string][]dataset.NullString{"Country": dataset.Strs(countries...)},
		map[string][]dataset.NullFloat{"Comp": dataset.Floats(comp...)},
	)
	if err != nil {
		t.Fatalf("NewResponseTable: %v", err)
	}
	return table
}

func usaTable() *dataset.CountryTable {
	return dataset.NewCountryTable(dataset.CountryRow{
		Country:         "USA",
		CostOfLiving:    dataset.Float(100),
		CostPlusRent:    dataset.Float(80),
		PurchasingPower: dataset.Float(140),
	})
}

func TestJoinMatched(t *testing.T) {
	j := New(Options{})
	res := j.Join(responses(t, []string{"USA"}, []float64{160000}), usaTable())

	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if !row.Matched || row.CostOfLiving != dataset.Float(100) {
		t.Errorf("expected cost index 100, got %+v", row)
	}
	if row.Affordability != dataset.Float(2000) {
		t.Errorf("affordability: got %+v, want 2000", row.Affordability)
	}
	if res.Report.Matched != 1 || res.Report.Unmatched != 0 {
		t.Errorf("report: %+v", res.Report)
	}
}

func TestJoinUnmatchedRetain(t *testing.T) {
	countries := dataset.NewCountryTable(dataset.CountryRow{Country: "Germany", CostOfLiving: dataset.Float(62)})
	j := New(Options{Policy: PolicyRetain})
	res := j.Join(responses(t, []string{"USA"}, []float64{160000}), countries)

	if res.Report.Unmatched != 1 {
		t.Fatalf("unmatched should be exactly 1, got %d", res.Report.Unmatched)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("retain policy should keep the row, got %d rows", len(res.Rows))
	}
	row := res.Rows[0]
	if row.Matched || row.CostOfLiving.Valid || row.PurchasingPower.Valid || row.Affordability.Valid {
		t.Errorf("unmatched row should carry null economics: %+v", row)
	}
	if row.Compensation != dataset.Float(160000) {
		t.Errorf("survey fields should be kept: %+v", row)
	}
	if res.Report.UnmatchedKeys["united states"] != 1 {
		t.Errorf("unmatched keys: %v", res.Report.UnmatchedKeys)
	}
}

func TestJoinUnmatchedDrop(t *testing.T) {
	j := New(Options{Policy: PolicyDrop})
	res := j.Join(responses(t, []string{"USA", "Germany", ""}, []float64{1, 2, 3}), usaTable())

	if len(res.Rows) != 1 || res.Rows[0].Row != 0 {
		t.Fatalf("drop policy should keep only the match: %+v", res.Rows)
	}
	r := res.Report
	if r.Total != 3 || r.Matched != 1 || r.Unmatched != 2 || r.Dropped != 2 || r.MissingCountry != 1 {
		t.Errorf("report: %+v", r)
	}
	if r.Matched+r.Unmatched != r.Total {
		t.Error("every row must be accounted for")
	}
}

func TestJoinNullCompensation(t *testing.T) {
	j := New(Options{})
	res := j.Join(responses(t, []string{"United States of America"}, []float64{math.NaN()}), usaTable())

	row := res.Rows[0]
	if !row.Matched {
		t.Fatal("alias should match")
	}
	if row.Affordability.Valid {
		t.Errorf("null compensation gives null affordability, got %+v", row.Affordability)
	}
}

func TestJoinDuplicateCountries(t *testing.T) {
	countries := dataset.NewCountryTable(
		dataset.CountryRow{Country: "United States", CostOfLiving: dataset.Float(70)},
		dataset.CountryRow{Country: "USA", CostOfLiving: dataset.Float(999)},
	)
	res := New(Options{}).Join(responses(t, []string{"USA"}, []float64{1}), countries)

	if res.Rows[0].CostOfLiving != dataset.Float(70) {
		t.Errorf("first row should win, got %+v", res.Rows[0].CostOfLiving)
	}
	if res.Report.DuplicateKeys != 1 {
		t.Errorf("duplicate keys: %d", res.Report.DuplicateKeys)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyRetain, "retain": PolicyRetain, "drop": PolicyDrop} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("ignore"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestEconomics(t *testing.T) {
	countries := dataset.NewCountryTable(
		dataset.CountryRow{Country: "United States", CostOfLiving: dataset.Float(70), CostPlusRent: dataset.Float(50), PurchasingPower: dataset.Float(140)},
		dataset.CountryRow{Country: "India", CostOfLiving: dataset.Float(20), CostPlusRent: dataset.Float(10), PurchasingPower: dataset.Float(70)},
		dataset.CountryRow{Country: "Germany", CostOfLiving: dataset.Float(60), CostPlusRent: dataset.Float(40)},
	)
	table := responses(t,
		[]string{"USA", "United States of America", "India", "India", "India", "Germany", "Atlantis", ""},
		[]float64{100000, 200000, 10000, 20000, 30000, 80000, 1, 1},
	)

	econ, report := New(Options{}).Economics(table, countries)

	if len(econ) != 2 {
		t.Fatalf("expected 2 countries, got %+v", econ)
	}
	if econ[0].Country != "United States" || econ[0].Count != 2 {
		t.Errorf("first: %+v", econ[0])
	}
	if econ[0].MedianCompensation != dataset.Float(150000) || econ[0].Affordability != dataset.Float(3000) {
		t.Errorf("US economics: %+v", econ[0])
	}
	if econ[1].Country != "India" || econ[1].Affordability != dataset.Float(2000) {
		t.Errorf("India economics: %+v", econ[1])
	}

	if report.Countries != 4 || report.Kept != 2 || report.Dropped != 2 {
		t.Errorf("report: %+v", report)
	}
	if len(report.Missing) != 2 || report.Missing[0] != "Atlantis" || report.Missing[1] != "Germany" {
		t.Errorf("missing: %v", report.Missing)
	}
}
