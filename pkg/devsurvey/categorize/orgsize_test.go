package categorize

import (
	"errors"
	"testing"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

func TestSize(t *testing.T) {
	o := MustOrgSizer(DefaultBuckets())

	tests := []struct {
		n    int64
		want string
	}{
		{-5, Unknown},
		{0, Unknown},
		{1, "Startup"},
		{50, "Startup"},
		{51, "Mid-sized"},
		{499, "Mid-sized"},
		{500, "Enterprise"},
		{10000, "Enterprise"},
	}
	for _, tt := range tests {
		if got := o.Size(tt.n); got != tt.want {
			t.Errorf("Size(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSizeBoundaryStable(t *testing.T) {
	o := MustOrgSizer(DefaultBuckets())
	first := o.Size(51)
	for i := 0; i < 100; i++ {
		if got := o.Size(51); got != first {
			t.Fatalf("boundary value changed bucket: %q then %q", first, got)
		}
	}
}

func TestCategorize(t *testing.T) {
	o := MustOrgSizer(DefaultBuckets())

	tests := []struct {
		in   dataset.NullString
		want string
	}{
		{dataset.NullString{}, Unknown},
		{dataset.Str("  "), Unknown},
		{dataset.Str("I don\u2019t know"), Unknown},
		{dataset.Str("I don't know"), Unknown},
		{dataset.Str("Just me - I am a freelancer, sole proprietor, etc."), "Startup"},
		{dataset.Str("2 to 9 employees"), "Startup"},
		{dataset.Str("20 to 99 employees"), "Startup"},
		{dataset.Str("100 to 499 employees"), "Mid-sized"},
		{dataset.Str("500 to 999 employees"), "Enterprise"},
		{dataset.Str("1,000 to 4,999 employees"), "Enterprise"},
		{dataset.Str("10,000 or more employees"), "Enterprise"},
		{dataset.Str("11-50"), "Startup"},
		{dataset.Str("201-500"), "Mid-sized"},
		{dataset.Str("5000+"), "Enterprise"},
		{dataset.Str("Large"), Other},
	}
	for _, tt := range tests {
		if got := o.Categorize(tt.in); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.in.String, got, tt.want)
		}
	}
}

func TestCategorizeAlwaysKnownLabel(t *testing.T) {
	o := MustOrgSizer(DefaultBuckets())
	labels := make(map[string]bool)
	for _, l := range o.Labels() {
		labels[l] = true
	}
	for _, got := range o.CategorizeColumn(dataset.Strs("", "x", "1", "99999", "I don't know")) {
		if !labels[got] {
			t.Errorf("label %q not in %v", got, o.Labels())
		}
	}
}

func TestNewOrgSizerValidation(t *testing.T) {
	bad := [][]Bucket{
		nil,
		{{Label: "A", Min: 0}},
		{{Label: "A", Min: 1}, {Label: "B", Min: 1}},
		{{Label: "A", Min: 1}, {Label: "A", Min: 10}},
		{{Label: "", Min: 1}},
		{{Label: Unknown, Min: 1}},
	}
	for i, b := range bad {
		if _, err := NewOrgSizer(b); !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestFirstInt(t *testing.T) {
	tests := map[string]int64{
		"1,000 to 4,999": 1000,
		"abc 42, then":   42,
		"7":              7,
	}
	for in, want := range tests {
		got, ok := firstInt(in)
		if !ok || got != want {
			t.Errorf("firstInt(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
	if _, ok := firstInt("none"); ok {
		t.Error("no digits should fail")
	}
}
