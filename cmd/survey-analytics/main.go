package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/cognicore/devsurvey/pkg/devsurvey"
	"github.com/cognicore/devsurvey/pkg/devsurvey/config"
	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/join"
	"github.com/cognicore/devsurvey/pkg/devsurvey/store"
	"github.com/cognicore/devsurvey/pkg/devsurvey/store/sqlite"
)

// overrides are flag values that take precedence over the config file.
// Zero values keep the configured setting.
type overrides struct {
	TopN     int
	MinCount int64
	Policy   string
}

func main() {
	var (
		surveyPath  = flag.String("survey", "", "Survey CSV file (required)")
		colPath     = flag.String("col", "", "Cost of living CSV or HTML file (required)")
		configPath  = flag.String("config", "", "YAML config file (optional)")
		aliasesPath = flag.String("aliases", "", "Extra country alias file (optional)")
		dbPath      = flag.String("db", "", "SQLite database to persist the run (optional)")
		topN        = flag.Int("top", 0, "Tokens per frequency table (0 = from config)")
		minCount    = flag.Int64("min-count", 0, "Minimum responses per regional summary (0 = from config)")
		policy      = flag.String("policy", "", "Unmatched country policy: retain or drop (default from config)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *surveyPath == "" {
		log.Fatal("--survey required")
	}
	if *colPath == "" {
		log.Fatal("--col required")
	}

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	err = run(context.Background(), logger, os.Stdout, runArgs{
		SurveyPath:  *surveyPath,
		ColPath:     *colPath,
		ConfigPath:  *configPath,
		AliasesPath: *aliasesPath,
		DBPath:      *dbPath,
		Overrides:   overrides{TopN: *topN, MinCount: *minCount, Policy: *policy},
	})
	if err != nil {
		logger.Errorw("survey analytics failed", "error", err)
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// runArgs are the parsed command line arguments.
type runArgs struct {
	SurveyPath  string
	ColPath     string
	ConfigPath  string
	AliasesPath string
	DBPath      string
	Overrides   overrides
}

// run executes one analysis and writes the JSON report to out.
// Deferred cleanup always runs before the caller exits.
func run(ctx context.Context, logger *zap.SugaredLogger, out io.Writer, args runArgs) error {
	analyzer, components, cleanup, err := buildAnalyzer(ctx, logger, args.ConfigPath, args.AliasesPath, args.DBPath, args.Overrides)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer cleanup()

	inputs, err := loadInputs(ctx, logger, components, args.SurveyPath, args.ColPath)
	if err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	res, err := analyzer.Run(ctx, inputs)
	if err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}
	logger.Infow("analysis complete",
		"run", res.RunID,
		"matched", humanize.Comma(int64(res.Join.Matched)),
		"unmatched", humanize.Comma(int64(res.Join.Unmatched)))

	report, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(report))
	return err
}

// newLogger writes to stderr so stdout carries only the report.
func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stderr"}
		logger, err = z.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func buildAnalyzer(ctx context.Context, logger *zap.SugaredLogger, configPath, aliasesPath, dbPath string, ov overrides) (*devsurvey.Analyzer, *config.Components, func(), error) {
	loader := config.Loader{
		ConfigPath:  configPath,
		AliasesPath: aliasesPath,
	}
	components, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configs: %w", err)
	}

	analysis := components.Config.Analysis
	if ov.TopN > 0 {
		analysis.TopN = ov.TopN
	}
	if ov.MinCount > 0 {
		analysis.MinCount = ov.MinCount
	}
	policy := components.Policy
	if ov.Policy != "" {
		if policy, err = join.ParsePolicy(ov.Policy); err != nil {
			return nil, nil, nil, err
		}
	}

	var st store.Store
	if dbPath != "" {
		st, err = sqlite.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
	}

	analyzer := devsurvey.New(devsurvey.Options{
		Store:        st,
		Normalizer:   components.Normalizer,
		OrgSizer:     components.OrgSizer,
		Policy:       policy,
		Logger:       logger,
		TopN:         analysis.TopN,
		MinCount:     analysis.MinCount,
		TopCountries: analysis.TopCountries,
		Frequencies:  analysis.Frequencies,
		Heatmaps:     analysis.Heatmaps,
		Correlation:  analysis.Correlation,
	})

	cleanup := func() {
		if err := analyzer.Close(); err != nil {
			logger.Warnw("close store", "error", err)
		}
	}
	return analyzer, components, cleanup, nil
}

func loadInputs(ctx context.Context, logger *zap.SugaredLogger, components *config.Components, surveyPath, colPath string) (devsurvey.Inputs, error) {
	responses, err := dataset.LoadResponses(ctx, surveyPath, components.Schema)
	if err != nil {
		return devsurvey.Inputs{}, fmt.Errorf("load survey: %w", err)
	}
	logger.Infow("loaded survey", "path", surveyPath, "responses", humanize.Comma(int64(responses.Len())))

	var countries *dataset.CountryTable
	if isHTML(components.Config.CostOfLiving.Format, colPath) {
		countries, err = dataset.LoadCountriesHTML(ctx, colPath, components.CountrySchema)
	} else {
		countries, err = dataset.LoadCountries(ctx, colPath, components.CountrySchema)
	}
	if err != nil {
		return devsurvey.Inputs{}, fmt.Errorf("load cost of living: %w", err)
	}
	logger.Infow("loaded cost of living", "path", colPath, "countries", humanize.Comma(int64(countries.Len())))

	return devsurvey.Inputs{
		Responses:        responses,
		Countries:        countries,
		SurveyPath:       surveyPath,
		CostOfLivingPath: colPath,
	}, nil
}

// isHTML reports whether the cost of living file is a saved web page.
func isHTML(format, path string) bool {
	if format == "html" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --survey survey.csv --col cost_of_living.csv [flags]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}
