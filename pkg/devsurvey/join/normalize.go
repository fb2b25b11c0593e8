package join

import (
	"strings"
	"unicode"
)

// DefaultAliases maps survey spellings onto cost-of-living spellings.
// Keys and values are given in cleaned form (see Clean).
var DefaultAliases = map[string]string{
	"usa":                      "united states",
	"us":                       "united states",
	"united states of america": "united states",
	"uk":                       "united kingdom",

	"united kingdom of great britain and northern ireland": "united kingdom",

	"russian federation":               "russia",
	"iran islamic republic of":         "iran",
	"republic of korea":                "south korea",
	"korea south":                      "south korea",
	"viet nam":                         "vietnam",
	"hong kong s a r":                  "hong kong",
	"hong kong china":                  "hong kong",
	"venezuela bolivarian republic of": "venezuela",
	"syrian arab republic":             "syria",
	"republic of moldova":              "moldova",
	"united republic of tanzania":      "tanzania",
	"lao people s democratic republic": "laos",
	"czechia":                          "czech republic",
	"turkiye":                          "turkey",

	"the former yugoslav republic of macedonia": "north macedonia",
}

// Normalizer turns country names into join keys.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a normalizer. Alias keys and targets are cleaned first,
// and chains (a -> b, b -> c) are collapsed so Key is idempotent.
func NewNormalizer(aliases map[string]string) *Normalizer {
	cleaned := make(map[string]string, len(aliases))
	for from, to := range aliases {
		f, t := Clean(from), Clean(to)
		if f == "" || t == "" || f == t {
			continue
		}
		cleaned[f] = t
	}

	resolved := make(map[string]string, len(cleaned))
	for from, to := range cleaned {
		seen := map[string]struct{}{from: {}}
		for {
			next, ok := cleaned[to]
			if !ok {
				break
			}
			if _, loop := seen[next]; loop {
				break
			}
			seen[to] = struct{}{}
			to = next
		}
		if to != from {
			resolved[from] = to
		}
	}
	return &Normalizer{aliases: resolved}
}

// Key returns the normalized join key for a country name.
func (n *Normalizer) Key(name string) string {
	key := Clean(name)
	if n == nil {
		return key
	}
	if alias, ok := n.aliases[key]; ok {
		return alias
	}
	return key
}

// Clean lowercases, turns punctuation into spaces, spells out "&" and collapses whitespace.
func Clean(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '&':
			sb.WriteString(" and ")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
