package aggregate

import (
	"sort"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/decompose"
)

// Counter accumulates exact token counts, overall and per group.
type Counter struct {
	rows    int64
	tokens  map[string]int64
	grouped map[string]map[string]int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{
		tokens:  make(map[string]int64),
		grouped: make(map[string]map[string]int64),
	}
}

// Add consumes one response's tokens.
func (c *Counter) Add(tokens []string) {
	c.rows++
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		c.tokens[tok]++
	}
}

// AddGrouped consumes one response's tokens and also counts them under group.
func (c *Counter) AddGrouped(group string, tokens []string) {
	c.Add(tokens)
	if c.grouped[group] == nil {
		c.grouped[group] = make(map[string]int64)
	}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		c.grouped[group][tok]++
	}
}

// Frequencies is an immutable view of a Counter.
type Frequencies struct {
	Rows    int64
	Tokens  map[string]int64
	ByGroup map[string]map[string]int64
}

// Snapshot returns a copy of the accumulated counts.
func (c *Counter) Snapshot() Frequencies {
	tokens := make(map[string]int64, len(c.tokens))
	for tok, n := range c.tokens {
		tokens[tok] = n
	}
	groups := make(map[string]map[string]int64, len(c.grouped))
	for g, counts := range c.grouped {
		groups[g] = make(map[string]int64, len(counts))
		for tok, n := range counts {
			groups[g][tok] = n
		}
	}
	return Frequencies{Rows: c.rows, Tokens: tokens, ByGroup: groups}
}

// Total is the number of token occurrences counted.
func (f Frequencies) Total() int64 {
	return Sum(f.Tokens)
}

// Sum adds up a frequency table.
func Sum(counts map[string]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

// Count tallies tokens across decomposed rows.
func Count(rows [][]string) map[string]int64 {
	c := NewCounter()
	for _, tokens := range rows {
		c.Add(tokens)
	}
	return c.Snapshot().Tokens
}

// CountColumn decomposes and counts a multi-value column.
func CountColumn(t *dataset.ResponseTable, column string) (map[string]int64, error) {
	cells, err := t.Text(column)
	if err != nil {
		return nil, err
	}
	return Count(decompose.Decompose(cells)), nil
}

// CountByGroup decomposes a multi-value column and counts it per value of groupColumn.
// Responses with a null group are counted overall only.
func CountByGroup(t *dataset.ResponseTable, column, groupColumn string) (Frequencies, error) {
	cells, err := t.Text(column)
	if err != nil {
		return Frequencies{}, err
	}
	groups, err := t.Text(groupColumn)
	if err != nil {
		return Frequencies{}, err
	}
	c := NewCounter()
	for i, tokens := range decompose.Decompose(cells) {
		if groups[i].Valid {
			c.AddGrouped(groups[i].String, tokens)
		} else {
			c.Add(tokens)
		}
	}
	return c.Snapshot(), nil
}

// Entry is one ranked token.
type Entry struct {
	Token string `json:"token"`
	Count int64  `json:"count"`
}

// Rank orders a frequency table by count descending, breaking ties by token ascending.
func Rank(counts map[string]int64) []Entry {
	out := make([]Entry, 0, len(counts))
	for tok, n := range counts {
		out = append(out, Entry{Token: tok, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Top returns the first n ranked entries; n <= 0 returns all of them.
func Top(counts map[string]int64, n int) []Entry {
	ranked := Rank(counts)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
