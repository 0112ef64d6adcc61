package models

import "time"

// RunState is a step of a scrape run.
type RunState int

const (
	StateInit RunState = iota
	StateListing
	StateListed
	StateFetching
	StateFetched
	StateReporting
	StateDone
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateListing:
		return "listing"
	case StateListed:
		return "listed"
	case StateFetching:
		return "fetching"
	case StateFetched:
		return "fetched"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult holds the overall result of a scrape run.
type RunResult struct {
	Results     *ResultSet
	State       RunState
	StartTime   time.Time
	EndTime     time.Time
	FromCache   bool
	PageCount   int
	FailedPages []int
	NameCount   int
	FailedNames []string
	// DuplicateRecords counts detail results dropped because the package
	// was already in Results.
	DuplicateRecords int
	// AbsentFields counts reported records per missing field.
	AbsentFields map[string]int
	ErrorsByType map[string]int
	RequestCount int
}
