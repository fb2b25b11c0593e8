package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cognicore/devsurvey/pkg/devsurvey/join"
	"github.com/cognicore/devsurvey/pkg/devsurvey/store/sqlite"
)

const testSurvey = `ResponseId,Country,OrgSize,Age,ConvertedCompYearly,YearsCodePro,JobSat,LanguageHaveWorkedWith
1,USA,2 to 9 employees,25-34 years old,160000,5,8,Go;Python
2,Germany,100 to 499 employees,35-44 years old,80000,10,7,Go;Rust
3,Narnia,I don't know,18-24 years old,30000,1,5,Python
`

const testCountries = `Rank,Country,Cost of Living Index,Rent Index,Cost of Living Plus Rent Index,Groceries Index,Restaurant Price Index,Local Purchasing Power Index
1,United States,100.0,60.0,80.0,90.0,95.0,140.0
2,Germany,65.0,25.0,45.0,55.0,60.0,110.0
`

const testConfig = `survey:
  numeric: []
  multi_value: [LanguageHaveWorkedWith]
  text: []
analysis:
  top_n: 5
  min_count: 1
  top_countries: 3
  frequencies: [LanguageHaveWorkedWith]
  heatmaps: [LanguageHaveWorkedWith]
  correlation: [ConvertedCompYearly, YearsCodePro]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBuildAndRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", testConfig)
	surveyPath := writeFile(t, dir, "survey.csv", testSurvey)
	colPath := writeFile(t, dir, "col.csv", testCountries)
	dbPath := filepath.Join(dir, "runs.db")
	logger := zap.NewNop().Sugar()

	analyzer, components, cleanup, err := buildAnalyzer(ctx, logger, cfgPath, "", dbPath, overrides{Policy: "drop"})
	if err != nil {
		t.Fatalf("buildAnalyzer failed: %v", err)
	}

	inputs, err := loadInputs(ctx, logger, components, surveyPath, colPath)
	if err != nil {
		t.Fatalf("loadInputs failed: %v", err)
	}
	res, err := analyzer.Run(ctx, inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	cleanup()

	if res.Join.Policy != join.PolicyDrop {
		t.Errorf("policy flag should override config, got %s", res.Join.Policy)
	}
	if res.Join.Matched != 2 || res.Join.Unmatched != 1 || res.Join.Dropped != 1 {
		t.Errorf("join report = %+v", res.Join)
	}

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	defer st.Close()
	run, err := st.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.SurveyPath != surveyPath || run.Join.Dropped != 1 {
		t.Errorf("persisted run = %+v", run)
	}
}

func TestBuildAnalyzerBadPolicy(t *testing.T) {
	_, _, _, err := buildAnalyzer(context.Background(), zap.NewNop().Sugar(), "", "", "", overrides{Policy: "ignore"})
	if err == nil {
		t.Error("buildAnalyzer should fail with an unknown policy")
	}
}

func TestBuildAnalyzerNonExistentConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yaml")
	_, _, _, err := buildAnalyzer(context.Background(), zap.NewNop().Sugar(), path, "", "", overrides{})
	if err == nil {
		t.Error("buildAnalyzer should fail with non-existent config")
	}
}

func TestLoadInputsMissingColumn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := zap.NewNop().Sugar()

	// Default config expects the full survey export.
	_, components, cleanup, err := buildAnalyzer(ctx, logger, "", "", "", overrides{})
	if err != nil {
		t.Fatalf("buildAnalyzer failed: %v", err)
	}
	defer cleanup()

	surveyPath := writeFile(t, dir, "survey.csv", testSurvey)
	colPath := writeFile(t, dir, "col.csv", testCountries)
	if _, err := loadInputs(ctx, logger, components, surveyPath, colPath); err == nil {
		t.Error("loadInputs should fail when survey columns are missing")
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		format, path string
		want         bool
	}{
		{"csv", "col.csv", false},
		{"csv", "col.HTML", true},
		{"", "page.htm", true},
		{"html", "export.txt", true},
	}
	for _, tt := range tests {
		if got := isHTML(tt.format, tt.path); got != tt.want {
			t.Errorf("isHTML(%q, %q) = %v, want %v", tt.format, tt.path, got, tt.want)
		}
	}
}

func TestRunWritesReportAndClosesStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	args := runArgs{
		SurveyPath: writeFile(t, dir, "survey.csv", testSurvey),
		ColPath:    writeFile(t, dir, "col.csv", testCountries),
		ConfigPath: writeFile(t, dir, "config.yaml", testConfig),
		DBPath:     dbPath,
	}

	var out bytes.Buffer
	if err := run(ctx, zap.NewNop().Sugar(), &out, args); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var report struct {
		RunID  string            `json:"run_id"`
		Joined []json.RawMessage `json:"joined"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("stdout should hold the JSON report: %v", err)
	}
	if report.RunID == "" || len(report.Joined) != 3 {
		t.Errorf("report run_id=%q joined=%d", report.RunID, len(report.Joined))
	}

	// Closing the last connection checkpoints and removes the WAL file.
	if _, err := os.Stat(dbPath + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("store should be closed when run returns, wal stat: %v", err)
	}
}

func TestRunClosesStoreOnError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	args := runArgs{
		SurveyPath: filepath.Join(dir, "missing.csv"),
		ColPath:    writeFile(t, dir, "col.csv", testCountries),
		ConfigPath: writeFile(t, dir, "config.yaml", testConfig),
		DBPath:     dbPath,
	}

	var out bytes.Buffer
	if err := run(ctx, zap.NewNop().Sugar(), &out, args); err == nil {
		t.Fatal("run should fail with a missing survey file")
	}
	if out.Len() != 0 {
		t.Errorf("no report expected on failure, got %q", out.String())
	}
	if _, err := os.Stat(dbPath + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("store should be closed after a failed run, wal stat: %v", err)
	}
}
