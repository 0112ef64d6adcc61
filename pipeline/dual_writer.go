package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/condastats/models"
)

// MultiWriter sends the same result set to several writers in order.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter combines writers.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write stops at the first failing writer.
func (mw *MultiWriter) Write(rs *models.ResultSet) error {
	for i, w := range mw.writers {
		if err := w.Write(rs); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
