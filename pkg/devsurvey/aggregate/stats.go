package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
)

// Median of the non-null values; null when there are none.
// Even-length input averages the two middle values.
func Median(values []dataset.NullFloat) dataset.NullFloat {
	vals := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid {
			vals = append(vals, v.Float64)
		}
	}
	if len(vals) == 0 {
		return dataset.NullFloat{}
	}
	sort.Float64s(vals)
	if len(vals)%2 == 1 {
		return dataset.Float(stat.Quantile(0.5, stat.Empirical, vals, nil))
	}
	mid := len(vals) / 2
	return dataset.Float(stat.Mean(vals[mid-1:mid+1], nil))
}

// TopGroups returns the n most common non-null values, count descending then name ascending.
func TopGroups(values []dataset.NullString, n int) []Entry {
	counts := make(map[string]int64)
	for _, v := range values {
		if v.Valid {
			counts[v.String]++
		}
	}
	return Top(counts, n)
}

// Region summarizes responses from one country.
type Region struct {
	Country            string            `json:"country"`
	Count              int64             `json:"count"`
	MedianCompensation dataset.NullFloat `json:"median_compensation"`
	MedianExperience   dataset.NullFloat `json:"median_experience"`
	MedianJobSat       dataset.NullFloat `json:"median_job_sat"`
}

// RegionalStats groups responses by country and reports medians of compensation,
// professional experience and job satisfaction. Countries with fewer than minCount
// responses are dropped. Responses without a country are ignored. Sorted by country.
func RegionalStats(t *dataset.ResponseTable, minCount int64) []Region {
	countries := t.Country()
	comp := t.Compensation()
	exp := t.Experience()
	sat := t.JobSat()

	type bucket struct {
		comp, exp, sat []dataset.NullFloat
	}
	buckets := make(map[string]*bucket)
	for i, c := range countries {
		if !c.Valid {
			continue
		}
		b := buckets[c.String]
		if b == nil {
			b = &bucket{}
			buckets[c.String] = b
		}
		b.comp = append(b.comp, comp[i])
		b.exp = append(b.exp, exp[i])
		b.sat = append(b.sat, sat[i])
	}

	var out []Region
	for country, b := range buckets {
		count := int64(len(b.comp))
		if count < minCount {
			continue
		}
		out = append(out, Region{
			Country:            country,
			Count:              count,
			MedianCompensation: Median(b.comp),
			MedianExperience:   Median(b.exp),
			MedianJobSat:       Median(b.sat),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// Correlation computes the Pearson correlation matrix of the given columns over
// rows where every column is non-null. Pairs with zero variance are NaN.
func Correlation(columns ...[]dataset.NullFloat) [][]float64 {
	k := len(columns)
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
	}
	if k == 0 {
		return out
	}

	n := len(columns[0])
	for _, col := range columns[1:] {
		if len(col) < n {
			n = len(col)
		}
	}

	data := make([][]float64, k)
	for row := 0; row < n; row++ {
		complete := true
		for _, col := range columns {
			if !col[row].Valid {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for c, col := range columns {
			data[c] = append(data[c], col[row].Float64)
		}
	}

	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			r := pearson(data[i], data[j])
			out[i][j] = r
			out[j][i] = r
		}
	}
	return out
}

// pearson is NaN for fewer than two rows or a constant column.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || constant(x) || constant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
