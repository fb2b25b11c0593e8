package aggregate

import (
	"sort"

	"github.com/cognicore/devsurvey/pkg/devsurvey/decompose"
)

// Matrix counts exploded tokens per group, restricted to the most frequent tokens.
type Matrix struct {
	Groups []string  `json:"groups"`
	Tokens []string  `json:"tokens"`
	Counts [][]int64 `json:"counts"` // Counts[group][token]
}

// Cell returns the count for a group/token pair, zero when either is absent.
func (m Matrix) Cell(group, token string) int64 {
	gi := indexOf(m.Groups, group)
	ti := indexOf(m.Tokens, token)
	if gi < 0 || ti < 0 {
		return 0
	}
	return m.Counts[gi][ti]
}

// BuildMatrix builds group x token counts from exploded rows.
// Rows with a null group are ignored. When groups is non-empty only those groups
// are kept, in that order; otherwise groups are sorted by name. Tokens are the
// topN most frequent within the kept rows, ranked as by Rank.
func BuildMatrix(rows []decompose.Row, groups []string, topN int) Matrix {
	allowed := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		allowed[g] = struct{}{}
	}

	cells := make(map[string]map[string]int64)
	totals := make(map[string]int64)
	for _, r := range rows {
		if !r.Group.Valid {
			continue
		}
		g := r.Group.String
		if len(allowed) > 0 {
			if _, ok := allowed[g]; !ok {
				continue
			}
		}
		if cells[g] == nil {
			cells[g] = make(map[string]int64)
		}
		cells[g][r.Token]++
		totals[r.Token]++
	}

	var m Matrix
	for _, e := range Top(totals, topN) {
		m.Tokens = append(m.Tokens, e.Token)
	}
	if len(groups) > 0 {
		m.Groups = append(m.Groups, groups...)
	} else {
		for g := range cells {
			m.Groups = append(m.Groups, g)
		}
		sort.Strings(m.Groups)
	}

	m.Counts = make([][]int64, len(m.Groups))
	for i, g := range m.Groups {
		m.Counts[i] = make([]int64, len(m.Tokens))
		for j, tok := range m.Tokens {
			m.Counts[i][j] = cells[g][tok]
		}
	}
	return m
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
