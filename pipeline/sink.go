package pipeline

import (
	"log/slog"
	"sync"
)

// FailureSink receives per-item failures so the batch can continue.
type FailureSink interface {
	RecordFailure(item string, err error)
}

// FailureFunc adapts a function to FailureSink.
type FailureFunc func(item string, err error)

// RecordFailure calls f.
func (f FailureFunc) RecordFailure(item string, err error) {
	f(item, err)
}

// LogSink logs failures at error level and counts them.
type LogSink struct {
	logger *slog.Logger

	mu    sync.Mutex
	count int
}

// NewLogSink returns a sink writing to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// RecordFailure logs err for item.
func (s *LogSink) RecordFailure(item string, err error) {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.logger.Error("item failed", slog.String("item", item), slog.Any("error", err))
}

// Count returns the number of failures recorded.
func (s *LogSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
