package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/condastats/config"
	"github.com/aluiziolira/condastats/models"
	"github.com/aluiziolira/condastats/parser"
	"github.com/aluiziolira/condastats/pipeline"
	"github.com/gocolly/colly/v2"
)

// progressEvery is how many completed tasks separate two progress logs.
const progressEvery = 50

// NameStore caches the package names of a channel between runs.
type NameStore interface {
	Load() ([]string, bool, error)
	Save(names []string) error
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFailureSink routes per-item failures to sink.
func WithFailureSink(sink pipeline.FailureSink) Option {
	return func(s *Scraper) {
		s.sink = sink
	}
}

// WithNameStore enables the package-name cache.
func WithNameStore(store NameStore) Option {
	return func(s *Scraper) {
		s.names = store
	}
}

// Scraper lists a channel's packages and collects their metadata.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	sink      pipeline.FailureSink
	names     NameStore
	Metrics   *Metrics

	requestCount int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	collector, err := newCollector(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = pipeline.NewLogSink(nil)
	}
	return s, nil
}

// ListURL returns the URL of the zero-based listing page.
func (s *Scraper) ListURL(page int) string {
	return fmt.Sprintf("%s/repo?page=%d", strings.TrimSuffix(s.cfg.BaseURL, "/"), page)
}

// DetailURL returns the URL of a package's detail page.
func (s *Scraper) DetailURL(name string) string {
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/" + url.PathEscape(name)
}

// ListPage fetches one listing page and returns its package name column.
func (s *Scraper) ListPage(ctx context.Context, page int) ([]string, error) {
	doc, err := s.fetch(ctx, phaseListing, s.ListURL(page))
	if err != nil {
		return nil, err
	}
	names, err := doc.Column(parser.NameColumn)
	if err != nil {
		return nil, fmt.Errorf("listing page %d: %w", page, err)
	}
	return names, nil
}

// FetchPackage fetches a package's detail page and extracts its record.
func (s *Scraper) FetchPackage(ctx context.Context, name string) (models.PackageRecord, error) {
	doc, err := s.fetch(ctx, phaseDetail, s.DetailURL(name))
	if err != nil {
		return models.PackageRecord{}, err
	}
	return doc.Record(), nil
}

// Run lists the package names (or loads them from the cache), fetches every
// detail page and writes the merged result set to out. Item failures only
// shrink the result; the run fails when no names are found or out fails.
func (s *Scraper) Run(ctx context.Context, out pipeline.OutputWriter) (*models.RunResult, error) {
	result := &models.RunResult{StartTime: time.Now(), State: models.StateInit}

	s.transition(result, models.StateListing)
	names, err := s.resolveNames(ctx, result)
	if err != nil {
		s.transition(result, models.StateFailed)
		return s.finish(result), err
	}
	if len(names) == 0 {
		s.transition(result, models.StateFailed)
		return s.finish(result), ErrNoPackageNames
	}
	result.NameCount = len(names)
	s.Metrics.SetNames(len(names))
	s.transition(result, models.StateListed)

	s.transition(result, models.StateFetching)
	agg := s.fetchRecords(ctx, names, result)
	s.transition(result, models.StateFetched)

	result.Results = agg.Results(s.cfg.SortByDownloads)
	stats := agg.Stats()
	result.DuplicateRecords = stats.Duplicates
	result.AbsentFields = stats.Absent

	s.transition(result, models.StateReporting)
	if err := out.Write(result.Results); err != nil {
		s.transition(result, models.StateFailed)
		return s.finish(result), ErrReport{Err: err}
	}
	s.transition(result, models.StateDone)
	return s.finish(result), nil
}

func (s *Scraper) resolveNames(ctx context.Context, result *models.RunResult) ([]string, error) {
	if s.names != nil {
		cached, ok, err := s.names.Load()
		switch {
		case err != nil:
			slog.Warn("name cache unreadable, listing instead", slog.Any("error", err))
		case ok:
			result.FromCache = true
			slog.Info("using cached package names", slog.Int("names", len(cached)))
			set, err := pipeline.NewNameSet(s.cfg.DedupeMaxSize)
			if err != nil {
				return nil, err
			}
			set.Add(cached...)
			return set.Names(), nil
		}
	}

	names, err := s.listNames(ctx, result)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 && s.names != nil {
		if err := s.names.Save(names); err != nil {
			slog.Warn("saving name cache failed", slog.Any("error", err))
		}
	}
	return names, nil
}

func (s *Scraper) listNames(ctx context.Context, result *models.RunResult) ([]string, error) {
	set, err := pipeline.NewNameSet(s.cfg.DedupeMaxSize)
	if err != nil {
		return nil, err
	}

	pages := make([]int, s.cfg.Pages())
	for i := range pages {
		pages[i] = i
	}

	byPage := make(map[int][]string, len(pages))
	completed := 0
	for res := range pipeline.Collect(ctx, s.cfg.Workers, pages, s.ListPage) {
		completed++
		s.logProgress(phaseListing, completed, len(pages))
		if res.Err != nil {
			result.FailedPages = append(result.FailedPages, res.Task)
			s.recordFailure(fmt.Sprintf("listing page %d", res.Task), res.Err)
			continue
		}
		byPage[res.Task] = res.Value
	}

	// Pages are merged in index order so the union does not depend on
	// completion order.
	for _, page := range pages {
		set.Add(byPage[page]...)
	}
	slices.Sort(result.FailedPages)
	result.PageCount = len(byPage)

	if dupes := set.Duplicates(); dupes > 0 {
		slog.Debug("dropped repeated package names", slog.Int("duplicates", dupes))
	}
	slog.Info("listing complete",
		slog.Int("pages", len(byPage)),
		slog.Int("failed_pages", len(result.FailedPages)),
		slog.Int("names", set.Len()),
	)
	return set.Names(), nil
}

func (s *Scraper) fetchRecords(ctx context.Context, names []string, result *models.RunResult) *pipeline.Aggregator {
	agg := pipeline.NewAggregator()
	completed := 0
	for res := range pipeline.Collect(ctx, s.cfg.Workers, names, s.FetchPackage) {
		completed++
		s.logProgress(phaseDetail, completed, len(names))
		if res.Err != nil {
			result.FailedNames = append(result.FailedNames, res.Task)
			s.recordFailure("package "+res.Task, res.Err)
			continue
		}
		if err := agg.Add(res.Task, res.Value); err != nil {
			slog.Warn("dropping record", slog.String("package", res.Task), slog.Any("error", err))
			continue
		}
		s.Metrics.IncRecords()
	}
	slices.Sort(result.FailedNames)

	slog.Info("fetching complete",
		slog.Int("packages", len(names)-len(result.FailedNames)),
		slog.Int("failed", len(result.FailedNames)),
	)
	return agg
}

func (s *Scraper) recordFailure(item string, err error) {
	category := errorTypeLabel(err)

	s.mu.Lock()
	s.errorsByType[category]++
	s.mu.Unlock()

	s.Metrics.IncError(category)
	s.sink.RecordFailure(item, err)
}

func (s *Scraper) logProgress(phase string, completed, total int) {
	if completed%progressEvery != 0 && completed != total {
		return
	}
	slog.Debug("scraper progress",
		slog.String("phase", phase),
		slog.Int("completed", completed),
		slog.Int("total", total),
		slog.Int64("requests", atomic.LoadInt64(&s.requestCount)),
	)
}

func (s *Scraper) transition(result *models.RunResult, state models.RunState) {
	slog.Debug("run state", slog.String("from", result.State.String()), slog.String("to", state.String()))
	result.State = state
}

func (s *Scraper) finish(result *models.RunResult) *models.RunResult {
	result.EndTime = time.Now()
	result.ErrorsByType = s.snapshotErrors()
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	return result
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
