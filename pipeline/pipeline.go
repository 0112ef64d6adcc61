// Package pipeline fans scrape tasks out to workers and merges their
// results into an ordered, reportable result set.
package pipeline

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/aluiziolira/condastats/models"
)

var (
	// ErrDuplicateName is returned when a package is added twice.
	ErrDuplicateName = errors.New("pipeline: duplicate package name")
)

// Aggregator merges package records into a ResultSet. It is meant to be
// fed by the single goroutine draining a Collect channel.
type Aggregator struct {
	results *models.ResultSet
	stats   Stats
}

// Stats counts what an Aggregator accepted and rejected.
type Stats struct {
	Processed  int
	Duplicates int
	// Absent counts accepted records per missing field name.
	Absent map[string]int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		results: models.NewResultSet(),
		stats:   Stats{Absent: make(map[string]int)},
	}
}

// Add records rec for name.
func (a *Aggregator) Add(name string, rec models.PackageRecord) error {
	if !a.results.Add(name, rec) {
		a.stats.Duplicates++
		return ErrDuplicateName
	}
	if rec.Downloads == nil {
		a.stats.Absent["downloads"]++
	}
	if rec.HomePage == nil {
		a.stats.Absent["homepage"]++
	}
	if rec.LastUpload == nil {
		a.stats.Absent["last_upload"]++
	}
	a.stats.Processed++
	return nil
}

// Results returns the merged set, ordered by downloads when sortByDownloads
// is set and by insertion otherwise.
func (a *Aggregator) Results(sortByDownloads bool) *models.ResultSet {
	if sortByDownloads {
		return SortByDownloads(a.results)
	}
	return a.results
}

// Stats returns a copy of the counters gathered so far.
func (a *Aggregator) Stats() Stats {
	stats := a.stats
	stats.Absent = maps.Clone(a.stats.Absent)
	return stats
}

type entry struct {
	name string
	rec  models.PackageRecord
}

// SortByDownloads returns a new set ordered by ascending download count.
// Records without a count rank lowest and come first; equal counts are
// ordered by package name.
func SortByDownloads(rs *models.ResultSet) *models.ResultSet {
	names := rs.Names()
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		rec, _ := rs.Get(name)
		entries = append(entries, entry{name: name, rec: rec})
	}

	slices.SortFunc(entries, compareDownloads)

	sorted := models.NewResultSet()
	for _, e := range entries {
		sorted.Add(e.name, e.rec)
	}
	return sorted
}

func compareDownloads(a, b entry) int {
	switch {
	case a.rec.Downloads == nil && b.rec.Downloads != nil:
		return -1
	case a.rec.Downloads != nil && b.rec.Downloads == nil:
		return 1
	case a.rec.Downloads != nil && b.rec.Downloads != nil:
		if c := cmp.Compare(*a.rec.Downloads, *b.rec.Downloads); c != 0 {
			return c
		}
	}
	return strings.Compare(a.name, b.name)
}
