package categorize

import (
	"strings"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
)

// AgeBins lists the age bins in display order.
var AgeBins = []string{"<25", "25-34", "35-44", "45-54", "55+"}

var ageBinMap = map[string]string{
	"<18":               "<25",
	"18-24":             "<25",
	"25-34":             "25-34",
	"35-44":             "35-44",
	"45-54":             "45-54",
	"55-64":             "55+",
	"65 or older":       "55+",
	"65 years or older": "55+",
}

// AgeBin folds a survey age answer ("25-34 years old", "Under 18 years old")
// into a coarser bin. "Prefer not to say" and unrecognized answers are null.
func AgeBin(v dataset.NullString) dataset.NullString {
	if !v.Valid {
		return dataset.NullString{}
	}
	s := strings.ReplaceAll(v.String, " years old", "")
	s = strings.ReplaceAll(s, "Under ", "<")
	bin, ok := ageBinMap[strings.TrimSpace(s)]
	if !ok {
		return dataset.NullString{}
	}
	return dataset.Str(bin)
}

// AgeBinColumn bins every row.
func AgeBinColumn(col []dataset.NullString) []dataset.NullString {
	out := make([]dataset.NullString, len(col))
	for i, v := range col {
		out[i] = AgeBin(v)
	}
	return out
}
