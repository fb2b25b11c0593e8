package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
)

const defaultURL = "https://www.numbeo.com/cost-of-living/rankings_by_country.jsp"

func main() {
	var (
		pageURL = flag.String("url", defaultURL, "Cost of living ranking page")
		outPath = flag.String("out", "testdata/col/cost_of_living.csv", "Output CSV path")
		timeout = flag.Duration("timeout", 30*time.Second, "HTTP timeout")
	)
	flag.Parse()

	z, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger := z.Sugar()

	client := &http.Client{Timeout: *timeout}
	err = download(context.Background(), logger, client, *pageURL, *outPath)
	if err != nil {
		logger.Errorw("download failed", "url", *pageURL, "error", err)
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// download fetches the ranking page and saves its table as CSV at outPath.
func download(ctx context.Context, logger *zap.SugaredLogger, client *http.Client, pageURL, outPath string) error {
	schema := dataset.DefaultCountrySchema()

	logger.Infow("downloading cost of living table", "url", pageURL)
	table, err := fetchCountries(ctx, client, pageURL, schema)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if err := writeCountriesCSV(out, table, schema); err != nil {
		out.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	logger.Infow("saved cost of living table", "countries", humanize.Comma(int64(table.Len())), "path", outPath)
	return nil
}

func fetchCountries(ctx context.Context, client *http.Client, url string, schema dataset.CountrySchema) (*dataset.CountryTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "devsurvey-download-col/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return dataset.ReadCountriesHTML(ctx, resp.Body, schema)
}

// writeCountriesCSV writes the schema columns; null indices are empty cells.
func writeCountriesCSV(w io.Writer, t *dataset.CountryTable, schema dataset.CountrySchema) error {
	cw := csv.NewWriter(w)
	header := []string{schema.Country, schema.CostOfLiving, schema.CostPlusRent, schema.PurchasingPower}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		record := []string{
			row.Country,
			formatIndex(row.CostOfLiving),
			formatIndex(row.CostPlusRent),
			formatIndex(row.PurchasingPower),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatIndex(f dataset.NullFloat) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}
