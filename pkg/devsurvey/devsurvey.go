package devsurvey

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/devsurvey/pkg/devsurvey/aggregate"
	"github.com/cognicore/devsurvey/pkg/devsurvey/categorize"
	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/decompose"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
	"github.com/cognicore/devsurvey/pkg/devsurvey/join"
	"github.com/cognicore/devsurvey/pkg/devsurvey/store"
)

// Column names under which derived categories are persisted.
const (
	OrgSizeColumn = "org_size"
	AgeBinColumn  = "age_bin"
)

// Analyzer is the survey analysis facade
type Analyzer struct {
	store   store.Store
	joiner  *join.Joiner
	sizer   *categorize.OrgSizer
	logger  *zap.SugaredLogger
	opts    Options
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Options configures an Analyzer
type Options struct {
	Store        store.Store // optional; runs are persisted when set
	Normalizer   *join.Normalizer
	OrgSizer     *categorize.OrgSizer
	Policy       join.Policy
	Logger       *zap.SugaredLogger
	TopN         int      // tokens kept per frequency table and heatmap
	MinCount     int64    // minimum responses for a regional summary
	TopCountries int      // countries kept in heatmaps
	Frequencies  []string // multi-value columns to count
	Heatmaps     []string // multi-value columns to cross with country
	Correlation  []string // numeric columns to correlate
}

// New creates an Analyzer with the given dependencies
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	sizer := opts.OrgSizer
	if sizer == nil {
		sizer = categorize.MustOrgSizer(categorize.DefaultBuckets())
	}
	joiner := join.New(join.Options{
		Normalizer: opts.Normalizer,
		Policy:     opts.Policy,
		Logger:     logger,
	})
	return &Analyzer{
		store:   opts.Store,
		joiner:  joiner,
		sizer:   sizer,
		logger:  logger,
		opts:    opts,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Close releases the store, if any.
func (a *Analyzer) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Inputs are the loaded tables of one run. Paths are recorded, not read.
type Inputs struct {
	Responses        *dataset.ResponseTable
	Countries        *dataset.CountryTable
	SurveyPath       string
	CostOfLivingPath string
}

// FrequencyTable is the ranked token count of one multi-value column.
type FrequencyTable struct {
	Column    string            `json:"column"`
	Responded int64             `json:"responded"` // responses with at least one token
	Tokens    int64             `json:"tokens"`
	Distinct  int               `json:"distinct"`
	Top       []aggregate.Entry `json:"top"`
	counts    map[string]int64
}

// CorrelationMatrix holds Pearson coefficients; undefined pairs are null.
type CorrelationMatrix struct {
	Columns []string              `json:"columns"`
	Values  [][]dataset.NullFloat `json:"values"`
}

// Result is everything one run derives from its inputs.
type Result struct {
	RunID           string                      `json:"run_id"`
	CreatedAt       time.Time                   `json:"created_at"`
	Responses       int                         `json:"responses"`
	Analyzed        int                         `json:"analyzed"`
	Frequencies     []FrequencyTable            `json:"frequencies"`
	Heatmaps        map[string]aggregate.Matrix `json:"heatmaps"`
	OrgSizes        []aggregate.Entry           `json:"org_sizes"`
	AgeBins         []aggregate.Entry           `json:"age_bins"`
	TopCountries    []aggregate.Entry           `json:"top_countries"`
	Join            join.Report                 `json:"join"`
	Joined          []join.Row                  `json:"joined"`
	Economics       []join.CountryEconomics     `json:"economics"`
	EconomicsReport join.EconomicsReport        `json:"economics_report"`
	Regions         []aggregate.Region          `json:"regions"`
	Correlation     CorrelationMatrix           `json:"correlation"`
}

// Run joins the responses with the cost-of-living table, then derives every
// table from the joined responses and persists the run when a store is configured.
// Under PolicyDrop, responses without a matching country are excluded from every
// derived table; Joined row indices always refer to in.Responses.
// Cancellation is checked between stages.
func (a *Analyzer) Run(ctx context.Context, in Inputs) (*Result, error) {
	if in.Responses == nil || in.Countries == nil {
		return nil, fmt.Errorf("%w: responses and countries are required", internalerr.ErrInvalidInput)
	}

	res := &Result{
		RunID:     a.newID(),
		CreatedAt: a.now().UTC(),
		Responses: in.Responses.Len(),
		Heatmaps:  make(map[string]aggregate.Matrix),
	}
	a.logger.Infow("analysis started", "run", res.RunID, "responses", res.Responses, "countries", in.Countries.Len())

	joined := a.joiner.Join(in.Responses, in.Countries)
	res.Join = joined.Report
	res.Joined = joined.Rows
	t := joinedResponses(in.Responses, joined)
	res.Analyzed = t.Len()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, col := range a.opts.Frequencies {
		ft, err := a.frequencies(t, col)
		if err != nil {
			return nil, fmt.Errorf("frequencies: %w", err)
		}
		res.Frequencies = append(res.Frequencies, ft)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.TopCountries = aggregate.TopGroups(t.Country(), a.opts.TopCountries)
	countries := make([]string, len(res.TopCountries))
	for i, e := range res.TopCountries {
		countries[i] = e.Token
	}
	for _, col := range a.opts.Heatmaps {
		rows, err := decompose.Explode(t, col, t.Schema().Country)
		if err != nil {
			return nil, fmt.Errorf("heatmap: %w", err)
		}
		res.Heatmaps[col] = aggregate.BuildMatrix(rows, countries, a.opts.TopN)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.OrgSizes = a.orgSizes(t)
	res.AgeBins = ageBins(t)
	res.Economics, res.EconomicsReport = a.joiner.Economics(t, in.Countries)
	res.Regions = aggregate.RegionalStats(t, a.opts.MinCount)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	corr, err := a.correlation(t)
	if err != nil {
		return nil, fmt.Errorf("correlation: %w", err)
	}
	res.Correlation = corr

	if a.store != nil {
		if err := a.store.SaveRun(ctx, toRun(res, in)); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		a.logger.Infow("run saved", "run", res.RunID)
	}
	return res, nil
}

// joinedResponses keeps the responses that survived the join.
func joinedResponses(t *dataset.ResponseTable, joined join.Result) *dataset.ResponseTable {
	if len(joined.Rows) == t.Len() {
		return t
	}
	keep := make(map[int]bool, len(joined.Rows))
	for _, r := range joined.Rows {
		keep[r.Row] = true
	}
	return t.Filter(func(row int) bool { return keep[row] })
}

// newID returns a monotonic ULID; the entropy source is not safe for concurrent use.
func (a *Analyzer) newID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(a.now()), a.entropy).String()
}

func (a *Analyzer) frequencies(t *dataset.ResponseTable, column string) (FrequencyTable, error) {
	cells, err := t.Text(column)
	if err != nil {
		return FrequencyTable{}, err
	}
	c := aggregate.NewCounter()
	var responded int64
	for _, tokens := range decompose.Decompose(cells) {
		if len(tokens) > 0 {
			responded++
		}
		c.Add(tokens)
	}
	freq := c.Snapshot()
	return FrequencyTable{
		Column:    column,
		Responded: responded,
		Tokens:    freq.Total(),
		Distinct:  len(freq.Tokens),
		Top:       aggregate.Top(freq.Tokens, a.opts.TopN),
		counts:    freq.Tokens,
	}, nil
}

// orgSizes counts every label, in bucket order, including empty ones.
func (a *Analyzer) orgSizes(t *dataset.ResponseTable) []aggregate.Entry {
	counts := make(map[string]int64)
	for _, label := range a.sizer.CategorizeColumn(t.OrgSize()) {
		counts[label]++
	}
	labels := a.sizer.Labels()
	out := make([]aggregate.Entry, len(labels))
	for i, l := range labels {
		out[i] = aggregate.Entry{Token: l, Count: counts[l]}
	}
	return out
}

func ageBins(t *dataset.ResponseTable) []aggregate.Entry {
	counts := make(map[string]int64)
	for _, bin := range categorize.AgeBinColumn(t.Age()) {
		if bin.Valid {
			counts[bin.String]++
		}
	}
	out := make([]aggregate.Entry, len(categorize.AgeBins))
	for i, b := range categorize.AgeBins {
		out[i] = aggregate.Entry{Token: b, Count: counts[b]}
	}
	return out
}

func (a *Analyzer) correlation(t *dataset.ResponseTable) (CorrelationMatrix, error) {
	cols := make([][]dataset.NullFloat, len(a.opts.Correlation))
	for i, name := range a.opts.Correlation {
		col, err := t.Numeric(name)
		if err != nil {
			return CorrelationMatrix{}, err
		}
		cols[i] = col
	}
	raw := aggregate.Correlation(cols...)
	values := make([][]dataset.NullFloat, len(raw))
	for i, row := range raw {
		values[i] = dataset.Floats(row...)
	}
	return CorrelationMatrix{Columns: append([]string(nil), a.opts.Correlation...), Values: values}, nil
}

func toRun(res *Result, in Inputs) store.Run {
	run := store.Run{
		ID:               res.RunID,
		CreatedAt:        res.CreatedAt,
		SurveyPath:       in.SurveyPath,
		CostOfLivingPath: in.CostOfLivingPath,
		Policy:           string(res.Join.Policy),
		Join: store.JoinStats{
			Responses:      res.Join.Total,
			Matched:        res.Join.Matched,
			Unmatched:      res.Join.Unmatched,
			MissingCountry: res.Join.MissingCountry,
			Dropped:        res.Join.Dropped,
		},
	}
	seen := make(map[string]bool)
	for _, ft := range res.Frequencies {
		if seen[ft.Column] {
			continue
		}
		seen[ft.Column] = true
		for tok, n := range ft.counts {
			run.Frequencies = append(run.Frequencies, store.Frequency{Column: ft.Column, Token: tok, Count: n})
		}
	}
	for _, e := range res.OrgSizes {
		if e.Count > 0 {
			run.Frequencies = append(run.Frequencies, store.Frequency{Column: OrgSizeColumn, Token: e.Token, Count: e.Count})
		}
	}
	for _, e := range res.AgeBins {
		if e.Count > 0 {
			run.Frequencies = append(run.Frequencies, store.Frequency{Column: AgeBinColumn, Token: e.Token, Count: e.Count})
		}
	}
	for _, e := range res.Economics {
		run.Economics = append(run.Economics, store.Economics{
			Country:            e.Country,
			Responses:          e.Count,
			MedianCompensation: nullFloat(e.MedianCompensation),
			CostOfLiving:       nullFloat(e.CostOfLiving),
			CostPlusRent:       nullFloat(e.CostPlusRent),
			PurchasingPower:    nullFloat(e.PurchasingPower),
			Affordability:      nullFloat(e.Affordability),
		})
	}
	for _, r := range res.Joined {
		run.Rows = append(run.Rows, store.JoinedRow{
			Row:             r.Row,
			Country:         sql.NullString{String: r.Country.String, Valid: r.Country.Valid},
			Key:             r.Key,
			Matched:         r.Matched,
			Compensation:    nullFloat(r.Compensation),
			CostOfLiving:    nullFloat(r.CostOfLiving),
			CostPlusRent:    nullFloat(r.CostPlusRent),
			PurchasingPower: nullFloat(r.PurchasingPower),
			Affordability:   nullFloat(r.Affordability),
		})
	}
	return run
}

func nullFloat(f dataset.NullFloat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Float64, Valid: f.Valid}
}
