package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
)

// LoadCountriesHTML reads a saved cost-of-living web page.
func LoadCountriesHTML(ctx context.Context, path string, schema CountrySchema) (*CountryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cost of living page %s: %w", path, err)
	}
	defer f.Close()

	c, err := ReadCountriesHTML(ctx, f, schema)
	if err != nil {
		return nil, fmt.Errorf("read cost of living page %s: %w", path, err)
	}
	return c, nil
}

// ReadCountriesHTML extracts the first <table> of an HTML document.
// The first row (th or td cells) is the header.
func ReadCountriesHTML(ctx context.Context, r io.Reader, schema CountrySchema) (*CountryTable, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := findElement(doc, "table")
	if table == nil {
		return nil, fmt.Errorf("%w: no table element", internalerr.ErrEmptyInput)
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, nodeText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table has no rows", internalerr.ErrEmptyInput)
	}
	return buildCountries(rows[0], rows[1:], schema)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
