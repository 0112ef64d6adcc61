package pipeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aluiziolira/condastats/models"
)

func downloads(n int) models.PackageRecord {
	return models.PackageRecord{Downloads: &n}
}

func TestSortByDownloadsAbsentFirst(t *testing.T) {
	agg := NewAggregator()
	for name, rec := range map[string]models.PackageRecord{
		"A": downloads(50),
		"B": downloads(10),
		"C": {},
	} {
		if err := agg.Add(name, rec); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	got := agg.Results(true).Names()
	if want := []string{"C", "B", "A"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSortByDownloadsTiesByName(t *testing.T) {
	rs := models.NewResultSet()
	rs.Add("zeta", downloads(5))
	rs.Add("beta", models.PackageRecord{})
	rs.Add("alpha", downloads(5))
	rs.Add("gamma", models.PackageRecord{})
	rs.Add("omega", downloads(1))

	got := SortByDownloads(rs).Names()
	if want := []string{"beta", "gamma", "omega", "alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if orig := rs.Names(); orig[0] != "zeta" {
		t.Fatalf("input set was reordered: %v", orig)
	}
}

func TestAggregatorUnsortedKeepsInsertionOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Add("second", downloads(1))
	agg.Add("first", downloads(9))

	if got := agg.Results(false).Names(); !reflect.DeepEqual(got, []string{"second", "first"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestAggregatorRejectsDuplicate(t *testing.T) {
	agg := NewAggregator()
	if err := agg.Add("bwa", downloads(1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := agg.Add("bwa", models.PackageRecord{}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}

	stats := agg.Stats()
	if stats.Processed != 1 {
		t.Fatalf("processed = %d, want 1", stats.Processed)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", stats.Duplicates)
	}
	if stats.Absent["homepage"] != 1 || stats.Absent["downloads"] != 0 {
		t.Fatalf("absent fields = %v", stats.Absent)
	}

	stats.Absent["homepage"] = 99
	if agg.Stats().Absent["homepage"] != 1 {
		t.Fatalf("stats copy shares the absent map")
	}
}

func TestNameSetDedupes(t *testing.T) {
	set, err := NewNameSet(100)
	if err != nil {
		t.Fatalf("new name set: %v", err)
	}
	if added := set.Add("bwa", "samtools", ""); added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if added := set.Add("samtools", "htslib"); added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}

	if got := set.Names(); !reflect.DeepEqual(got, []string{"bwa", "samtools", "htslib"}) {
		t.Fatalf("names = %v", got)
	}
	if set.Duplicates() != 1 {
		t.Fatalf("duplicates = %d, want 1", set.Duplicates())
	}
}

func TestNewNameSetRejectsBadSize(t *testing.T) {
	if _, err := NewNameSet(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestLogSinkCounts(t *testing.T) {
	sink := NewLogSink(nil)
	sink.RecordFailure("page 3", errors.New("timeout"))
	sink.RecordFailure("bwa", errors.New("not found"))
	if sink.Count() != 2 {
		t.Fatalf("count = %d, want 2", sink.Count())
	}
}
