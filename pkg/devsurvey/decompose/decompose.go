package decompose

import (
	"strings"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
)

// Delimiter separates responses inside a multi-value survey cell.
const Delimiter = ";"

// Split breaks one cell into trimmed, non-empty tokens.
// A null cell, or one holding only delimiters and whitespace, yields nil.
func Split(cell dataset.NullString) []string {
	if !cell.Valid {
		return nil
	}
	var tokens []string
	for _, part := range strings.Split(cell.String, Delimiter) {
		if tok := strings.TrimSpace(part); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Decompose splits every cell of a column, preserving row order.
// The result has one entry per input row; null rows get nil.
func Decompose(cells []dataset.NullString) [][]string {
	out := make([][]string, len(cells))
	for i, cell := range cells {
		out[i] = Split(cell)
	}
	return out
}

// Row is one token of an exploded column, tied back to its source response.
type Row struct {
	Row   int
	Token string
	Group dataset.NullString
}

// Explode returns one Row per token of column. When groupColumn is set, each
// row carries that response's value of it (null stays null). Responses without
// tokens produce no rows.
func Explode(t *dataset.ResponseTable, column, groupColumn string) ([]Row, error) {
	cells, err := t.Text(column)
	if err != nil {
		return nil, err
	}
	groups := make([]dataset.NullString, len(cells))
	if groupColumn != "" {
		if groups, err = t.Text(groupColumn); err != nil {
			return nil, err
		}
	}

	var rows []Row
	for i, tokens := range Decompose(cells) {
		for _, tok := range tokens {
			rows = append(rows, Row{Row: i, Token: tok, Group: groups[i]})
		}
	}
	return rows, nil
}

// Regroup collects exploded rows back into tokens per source row.
func Regroup(rows []Row) map[int][]string {
	out := make(map[int][]string)
	for _, r := range rows {
		out[r.Row] = append(out[r.Row], r.Token)
	}
	return out
}
