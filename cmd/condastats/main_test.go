package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/condastats/models"
)

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{"--limit", "1", "--max_workers", "2", "--sort_by_downloads=false", "--export-format", "MARKDOWN"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Limit != 1 || cfg.Workers != 2 || cfg.SortByDownloads {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ExportFormat != "markdown" {
		t.Fatalf("export format = %q", cfg.ExportFormat)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("CONDASTATS_MAX_WORKERS", "3")
	t.Setenv("CONDASTATS_LIMIT", "5")

	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Workers != 3 || cfg.Limit != 5 {
		t.Fatalf("env not applied: workers=%d limit=%d", cfg.Workers, cfg.Limit)
	}
	if !cfg.SortByDownloads {
		t.Fatalf("sort should default to true")
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result := &models.RunResult{
		Results:      models.NewResultSet(),
		State:        models.StateDone,
		StartTime:    start,
		EndTime:      start.Add(1500 * time.Millisecond),
		PageCount:    2,
		FailedPages:  []int{3},
		NameCount:    40,
		FailedNames:  []string{"bwa"},
		ErrorsByType: map[string]int{"timeout": 1, "not_found": 1},
		RequestCount: 43,
		AbsentFields: map[string]int{"last_upload": 2, "homepage": 1},
	}

	var buf bytes.Buffer
	printSummary(&buf, result, 2)
	out := buf.String()
	for _, want := range []string{"Scrape done", "Pages:         2 (1 failed)", "Packages:      0 (1 failed)", "not_found=1 timeout=1", "Absent fields: homepage=1 last_upload=2", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Duplicates:") {
		t.Fatalf("duplicates line printed without duplicates:\n%s", out)
	}
}
