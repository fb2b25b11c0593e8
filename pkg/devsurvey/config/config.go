package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/devsurvey/pkg/devsurvey/categorize"
	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
	"github.com/cognicore/devsurvey/pkg/devsurvey/join"
)

// Config is the on-disk analysis configuration.
type Config struct {
	Survey       Survey       `yaml:"survey"`
	CostOfLiving CostOfLiving `yaml:"cost_of_living"`
	Countries    Countries    `yaml:"countries"`
	OrgSize      OrgSize      `yaml:"org_size"`
	Join         Join         `yaml:"join"`
	Analysis     Analysis     `yaml:"analysis"`
}

// Survey names the survey columns.
type Survey struct {
	ResponseID   string   `yaml:"response_id"`
	Country      string   `yaml:"country"`
	OrgSize      string   `yaml:"org_size"`
	Age          string   `yaml:"age"`
	Compensation string   `yaml:"compensation"`
	Experience   string   `yaml:"experience"`
	JobSat       string   `yaml:"job_sat"`
	Numeric      []string `yaml:"numeric"`
	MultiValue   []string `yaml:"multi_value"`
	Text         []string `yaml:"text"`
}

// CostOfLiving names the country table columns and its file format.
type CostOfLiving struct {
	Format          string `yaml:"format"` // csv or html
	Country         string `yaml:"country"`
	CostOfLiving    string `yaml:"cost_of_living"`
	CostPlusRent    string `yaml:"cost_plus_rent"`
	PurchasingPower string `yaml:"purchasing_power"`
}

// Countries configures country name normalization.
type Countries struct {
	Aliases               map[string]string `yaml:"aliases"`
	AliasesFile           string            `yaml:"aliases_file"`
	ReplaceDefaultAliases bool              `yaml:"replace_default_aliases"`
}

// OrgSize configures organization size buckets.
type OrgSize struct {
	Buckets []Bucket `yaml:"buckets"`
}

// Bucket is one org size bucket.
type Bucket struct {
	Label string `yaml:"label"`
	Min   int64  `yaml:"min"`
}

// Join configures the survey / cost-of-living join.
type Join struct {
	Policy string `yaml:"policy"`
}

// Analysis holds knobs for the derived tables.
type Analysis struct {
	TopN         int      `yaml:"top_n"`
	MinCount     int64    `yaml:"min_count"`
	TopCountries int      `yaml:"top_countries"`
	Frequencies  []string `yaml:"frequencies"`
	Heatmaps     []string `yaml:"heatmaps"`
	Correlation  []string `yaml:"correlation"`
}

// Default returns the configuration for the public Stack Overflow survey and
// the Numbeo cost of living export.
func Default() Config {
	s := dataset.DefaultSchema()
	c := dataset.DefaultCountrySchema()

	buckets := make([]Bucket, 0, 3)
	for _, b := range categorize.DefaultBuckets() {
		buckets = append(buckets, Bucket{Label: b.Label, Min: b.Min})
	}

	return Config{
		Survey: Survey{
			ResponseID:   s.ResponseID,
			Country:      s.Country,
			OrgSize:      s.OrgSize,
			Age:          s.Age,
			Compensation: s.Compensation,
			Experience:   s.Experience,
			JobSat:       s.JobSat,
			Numeric:      s.Numeric,
			MultiValue:   s.MultiValue,
			Text:         s.Text,
		},
		CostOfLiving: CostOfLiving{
			Format:          "csv",
			Country:         c.Country,
			CostOfLiving:    c.CostOfLiving,
			CostPlusRent:    c.CostPlusRent,
			PurchasingPower: c.PurchasingPower,
		},
		OrgSize: OrgSize{Buckets: buckets},
		Join:    Join{Policy: string(join.PolicyRetain)},
		Analysis: Analysis{
			TopN:         10,
			MinCount:     50,
			TopCountries: 10,
			Frequencies: []string{
				"LanguageHaveWorkedWith",
				"WebframeHaveWorkedWith",
				"DatabaseHaveWorkedWith",
				"LearnCode",
			},
			Heatmaps:    []string{"LanguageHaveWorkedWith", "DevType"},
			Correlation: []string{"ConvertedCompYearly", "JobSat", "YearsCode", "YearsCodePro"},
		},
	}
}

// Load reads a YAML configuration file. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Survey.Country == "" {
		return fmt.Errorf("%w: survey.country is required", internalerr.ErrInvalidConfig)
	}
	if c.CostOfLiving.Country == "" || c.CostOfLiving.CostPlusRent == "" ||
		c.CostOfLiving.CostOfLiving == "" || c.CostOfLiving.PurchasingPower == "" {
		return fmt.Errorf("%w: cost_of_living columns are required", internalerr.ErrInvalidConfig)
	}
	switch c.CostOfLiving.Format {
	case "", "csv", "html":
	default:
		return fmt.Errorf("%w: unknown cost_of_living.format %q", internalerr.ErrInvalidConfig, c.CostOfLiving.Format)
	}
	if _, err := join.ParsePolicy(c.Join.Policy); err != nil {
		return err
	}
	if _, err := categorize.NewOrgSizer(c.buckets()); err != nil {
		return err
	}
	if c.Analysis.TopN < 0 || c.Analysis.TopCountries < 0 || c.Analysis.MinCount < 0 {
		return fmt.Errorf("%w: analysis limits must not be negative", internalerr.ErrInvalidConfig)
	}

	known := make(map[string]bool)
	for _, col := range c.Survey.MultiValue {
		known[col] = true
	}
	for _, col := range append(append([]string{}, c.Analysis.Frequencies...), c.Analysis.Heatmaps...) {
		if !known[col] {
			return fmt.Errorf("%w: %s is not a survey multi_value column", internalerr.ErrInvalidConfig, col)
		}
	}
	numeric := map[string]bool{c.Survey.Compensation: true, c.Survey.Experience: true, c.Survey.JobSat: true}
	for _, col := range c.Survey.Numeric {
		numeric[col] = true
	}
	for _, col := range c.Analysis.Correlation {
		if col == "" || !numeric[col] {
			return fmt.Errorf("%w: %s is not a numeric survey column", internalerr.ErrInvalidConfig, col)
		}
	}
	return nil
}

func (c *Config) buckets() []categorize.Bucket {
	out := make([]categorize.Bucket, len(c.OrgSize.Buckets))
	for i, b := range c.OrgSize.Buckets {
		out[i] = categorize.Bucket{Label: b.Label, Min: b.Min}
	}
	return out
}

// Schema converts the survey section into a dataset schema.
func (c *Config) Schema() dataset.Schema {
	return dataset.Schema{
		ResponseID:   c.Survey.ResponseID,
		Country:      c.Survey.Country,
		OrgSize:      c.Survey.OrgSize,
		Age:          c.Survey.Age,
		Compensation: c.Survey.Compensation,
		Experience:   c.Survey.Experience,
		JobSat:       c.Survey.JobSat,
		Numeric:      append([]string(nil), c.Survey.Numeric...),
		MultiValue:   append([]string(nil), c.Survey.MultiValue...),
		Text:         append([]string(nil), c.Survey.Text...),
	}
}

// CountrySchema converts the cost_of_living section into a dataset schema.
func (c *Config) CountrySchema() dataset.CountrySchema {
	return dataset.CountrySchema{
		Country:         c.CostOfLiving.Country,
		CostOfLiving:    c.CostOfLiving.CostOfLiving,
		CostPlusRent:    c.CostOfLiving.CostPlusRent,
		PurchasingPower: c.CostOfLiving.PurchasingPower,
	}
}

// Aliases represents a standalone country alias file.
type Aliases struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases loads country aliases from a YAML file
func LoadAliases(path string) (*Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Aliases
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, err
	}

	return &a, nil
}
