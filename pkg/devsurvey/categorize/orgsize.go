package categorize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

// Labels outside the configured buckets.
const (
	Unknown = "Unknown" // missing, or the respondent did not know
	Other   = "Other"   // present but carries no size
)

// Bucket is a size category starting at Min employees (inclusive).
// It extends up to, but not including, the next bucket's Min.
type Bucket struct {
	Label string
	Min   int64
}

// DefaultBuckets splits at 51 and 500 employees.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Label: "Startup", Min: 1},
		{Label: "Mid-sized", Min: 51},
		{Label: "Enterprise", Min: 500},
	}
}

var unknownPhrases = []string{"don't know", "dont know", "do not know", "prefer not"}

// OrgSizer maps organization sizes onto an ordered set of buckets.
type OrgSizer struct {
	buckets []Bucket
}

// NewOrgSizer validates buckets: at least one, non-empty unique labels,
// strictly increasing Min starting at 1 or more.
func NewOrgSizer(buckets []Bucket) (*OrgSizer, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: no org size buckets", internalerr.ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(buckets))
	for i, b := range buckets {
		if b.Label == "" || b.Label == Unknown || b.Label == Other {
			return nil, fmt.Errorf("%w: bucket %d has reserved or empty label %q", internalerr.ErrInvalidConfig, i, b.Label)
		}
		if _, dup := seen[b.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate bucket label %q", internalerr.ErrInvalidConfig, b.Label)
		}
		seen[b.Label] = struct{}{}
		if i == 0 && b.Min < 1 {
			return nil, fmt.Errorf("%w: first bucket must start at 1 or more", internalerr.ErrInvalidConfig)
		}
		if i > 0 && b.Min <= buckets[i-1].Min {
			return nil, fmt.Errorf("%w: bucket %q must start above %d", internalerr.ErrInvalidConfig, b.Label, buckets[i-1].Min)
		}
	}
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	return &OrgSizer{buckets: out}, nil
}

// MustOrgSizer is NewOrgSizer that panics on invalid buckets.
func MustOrgSizer(buckets []Bucket) *OrgSizer {
	o, err := NewOrgSizer(buckets)
	if err != nil {
		panic(err)
	}
	return o
}

// Labels lists every label Categorize can return, in bucket order.
func (o *OrgSizer) Labels() []string {
	out := make([]string, 0, len(o.buckets)+2)
	for _, b := range o.buckets {
		out = append(out, b.Label)
	}
	return append(out, Other, Unknown)
}

// Size buckets an employee count. Counts below the first bucket are Unknown.
func (o *OrgSizer) Size(n int64) string {
	label := Unknown
	for _, b := range o.buckets {
		if n < b.Min {
			break
		}
		label = b.Label
	}
	return label
}

// Categorize buckets a survey answer such as "100 to 499 employees" by the first
// number in it. "Just me" counts as one; missing or "I don't know" is Unknown;
// text without a number is Other.
func (o *OrgSizer) Categorize(v dataset.NullString) string {
	if !v.Valid {
		return Unknown
	}
	s := strings.ToLower(strings.TrimSpace(v.String))
	s = strings.ReplaceAll(s, "\u2019", "'")
	if s == "" {
		return Unknown
	}
	for _, p := range unknownPhrases {
		if strings.Contains(s, p) {
			return Unknown
		}
	}
	if strings.HasPrefix(s, "just me") {
		return o.Size(1)
	}
	n, ok := firstInt(s)
	if !ok {
		return Other
	}
	return o.Size(n)
}

// CategorizeColumn buckets every row.
func (o *OrgSizer) CategorizeColumn(col []dataset.NullString) []string {
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = o.Categorize(v)
	}
	return out
}

// firstInt extracts the first run of digits, allowing thousands separators ("1,000").
func firstInt(s string) (int64, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	var digits strings.Builder
	rs := []rune(s[start:])
	for i, r := range rs {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
			continue
		}
		if r == ',' && i+1 < len(rs) && unicode.IsDigit(rs[i+1]) {
			continue
		}
		break
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
