package join

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/devsurvey/pkg/devsurvey/aggregate"
	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

// Policy decides what happens to responses whose country has no cost-of-living row.
type Policy string

const (
	// PolicyRetain keeps unmatched responses with null economic fields.
	PolicyRetain Policy = "retain"
	// PolicyDrop removes unmatched responses from the joined rows.
	PolicyDrop Policy = "drop"
)

// ParsePolicy validates a policy name. The empty string selects PolicyRetain.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRetain:
		return PolicyRetain, nil
	case PolicyDrop:
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("%w: unknown join policy %q", internalerr.ErrInvalidConfig, s)
}

// Options configures a Joiner.
type Options struct {
	Normalizer *Normalizer
	Policy     Policy
	Logger     *zap.SugaredLogger
}

// Joiner matches survey responses to cost-of-living rows by normalized country.
type Joiner struct {
	norm   *Normalizer
	policy Policy
	logger *zap.SugaredLogger
}

// New creates a Joiner. A nil Normalizer uses DefaultAliases.
func New(opts Options) *Joiner {
	j := &Joiner{
		norm:   opts.Normalizer,
		policy: opts.Policy,
		logger: opts.Logger,
	}
	if j.norm == nil {
		j.norm = NewNormalizer(DefaultAliases)
	}
	if j.policy == "" {
		j.policy = PolicyRetain
	}
	if j.logger == nil {
		j.logger = zap.NewNop().Sugar()
	}
	return j
}

// Policy returns the unmatched-row policy in effect.
func (j *Joiner) Policy() Policy { return j.policy }

// Row is one response joined with its country's economic indices.
type Row struct {
	Row             int                `json:"row"`
	Country         dataset.NullString `json:"country"`
	Key             string             `json:"key"`
	Matched         bool               `json:"matched"`
	Compensation    dataset.NullFloat  `json:"compensation"`
	CostOfLiving    dataset.NullFloat  `json:"cost_of_living_index"`
	CostPlusRent    dataset.NullFloat  `json:"cost_plus_rent_index"`
	PurchasingPower dataset.NullFloat  `json:"purchasing_power_index"`
	Affordability   dataset.NullFloat  `json:"affordability_score"`
}

// Report accounts for every response fed to Join.
// Total == Matched + Unmatched, and Dropped is Unmatched under PolicyDrop, else 0.
type Report struct {
	Policy         Policy         `json:"policy"`
	Total          int            `json:"total"`
	Matched        int            `json:"matched"`
	Unmatched      int            `json:"unmatched"`
	MissingCountry int            `json:"missing_country"`
	Dropped        int            `json:"dropped"`
	DuplicateKeys  int            `json:"duplicate_keys"`
	UnmatchedKeys  map[string]int `json:"unmatched_keys"`
}

// Result is the output of Join.
type Result struct {
	Rows   []Row  `json:"rows"`
	Report Report `json:"report"`
}

// index maps normalized keys to country rows; the first row for a key wins.
func (j *Joiner) index(countries *dataset.CountryTable) (map[string]int, int) {
	idx := make(map[string]int, countries.Len())
	dups := 0
	for i, name := range countries.Country {
		key := j.norm.Key(name)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; ok {
			dups++
			continue
		}
		idx[key] = i
	}
	return idx, dups
}

// Join attaches cost-of-living indices to every response. Responses with a null
// country, or a country missing from the table, are unmatched and handled per policy.
func (j *Joiner) Join(responses *dataset.ResponseTable, countries *dataset.CountryTable) Result {
	idx, dups := j.index(countries)
	names := responses.Country()
	comp := responses.Compensation()

	report := Report{
		Policy:        j.policy,
		Total:         len(names),
		DuplicateKeys: dups,
		UnmatchedKeys: make(map[string]int),
	}
	rows := make([]Row, 0, len(names))

	for i, name := range names {
		row := Row{Row: i, Country: name, Compensation: comp[i]}
		if name.Valid {
			row.Key = j.norm.Key(name.String)
		}

		ci, ok := idx[row.Key]
		if !name.Valid || row.Key == "" || !ok {
			report.Unmatched++
			if !name.Valid || row.Key == "" {
				report.MissingCountry++
			} else {
				report.UnmatchedKeys[row.Key]++
			}
			if j.policy == PolicyDrop {
				report.Dropped++
				continue
			}
			rows = append(rows, row)
			continue
		}

		report.Matched++
		row.Matched = true
		row.CostOfLiving = countries.CostOfLiving[ci]
		row.CostPlusRent = countries.CostPlusRent[ci]
		row.PurchasingPower = countries.PurchasingPower[ci]
		row.Affordability = affordability(comp[i], row.CostPlusRent)
		rows = append(rows, row)
	}

	j.logger.Infow("joined responses with cost of living",
		"policy", string(j.policy),
		"rows", report.Total,
		"matched", report.Matched,
		"unmatched", report.Unmatched,
		"missing_country", report.MissingCountry,
		"dropped", report.Dropped,
	)
	if report.DuplicateKeys > 0 {
		j.logger.Warnw("cost of living table has duplicate countries; first row kept", "duplicates", report.DuplicateKeys)
	}

	return Result{Rows: rows, Report: report}
}

// affordability is compensation divided by the cost-of-living-plus-rent index.
func affordability(comp, index dataset.NullFloat) dataset.NullFloat {
	if !comp.Valid || !index.Valid || index.Float64 == 0 {
		return dataset.NullFloat{}
	}
	return dataset.Float(comp.Float64 / index.Float64)
}

// CountryEconomics summarizes compensation against local prices for one country.
type CountryEconomics struct {
	Country            string            `json:"country"`
	Key                string            `json:"key"`
	Count              int64             `json:"count"`
	MedianCompensation dataset.NullFloat `json:"median_compensation"`
	CostOfLiving       dataset.NullFloat `json:"cost_of_living_index"`
	CostPlusRent       dataset.NullFloat `json:"cost_plus_rent_index"`
	PurchasingPower    dataset.NullFloat `json:"purchasing_power_index"`
	Affordability      dataset.NullFloat `json:"affordability_score"`
}

// EconomicsReport accounts for the countries seen by Economics.
type EconomicsReport struct {
	Countries int      `json:"countries"`
	Kept      int      `json:"kept"`
	Dropped   int      `json:"dropped"`
	Missing   []string `json:"missing"`
}

// Economics computes per-country median compensation and response count, then
// left-joins the cost-of-living table. Countries lacking a cost-plus-rent or
// purchasing power index are dropped and listed in the report. Results are
// ordered by affordability descending (nulls last), then country.
func (j *Joiner) Economics(responses *dataset.ResponseTable, countries *dataset.CountryTable) ([]CountryEconomics, EconomicsReport) {
	idx, _ := j.index(countries)
	names := responses.Country()
	comp := responses.Compensation()

	type group struct {
		name string
		comp []dataset.NullFloat
	}
	groups := make(map[string]*group)
	var order []string
	for i, name := range names {
		if !name.Valid {
			continue
		}
		key := j.norm.Key(name.String)
		if key == "" {
			continue
		}
		g := groups[key]
		if g == nil {
			g = &group{name: name.String}
			groups[key] = g
			order = append(order, key)
		}
		g.comp = append(g.comp, comp[i])
	}

	var report EconomicsReport
	report.Countries = len(order)
	var out []CountryEconomics
	for _, key := range order {
		g := groups[key]
		ci, ok := idx[key]
		if !ok || !countries.CostPlusRent[ci].Valid || !countries.PurchasingPower[ci].Valid {
			report.Dropped++
			report.Missing = append(report.Missing, g.name)
			continue
		}
		median := aggregate.Median(g.comp)
		out = append(out, CountryEconomics{
			Country:            countries.Country[ci],
			Key:                key,
			Count:              int64(len(g.comp)),
			MedianCompensation: median,
			CostOfLiving:       countries.CostOfLiving[ci],
			CostPlusRent:       countries.CostPlusRent[ci],
			PurchasingPower:    countries.PurchasingPower[ci],
			Affordability:      affordability(median, countries.CostPlusRent[ci]),
		})
	}
	report.Kept = len(out)
	sort.Strings(report.Missing)

	sort.Slice(out, func(a, b int) bool {
		x, y := out[a].Affordability, out[b].Affordability
		if x.Valid != y.Valid {
			return x.Valid
		}
		if x.Valid && x.Float64 != y.Float64 {
			return x.Float64 > y.Float64
		}
		return out[a].Country < out[b].Country
	})

	j.logger.Infow("computed country economics",
		"countries", report.Countries,
		"kept", report.Kept,
		"dropped", report.Dropped,
	)
	return out, report
}
