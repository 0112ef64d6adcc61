package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aluiziolira/condastats/parser"
)

// ErrNoPackageNames is returned when neither the cache nor the listing pages
// yielded a single package name.
var ErrNoPackageNames = errors.New("scraper: no package names could be obtained")

// ErrNetwork wraps a transport failure that produced no response.
type ErrNetwork struct {
	Timeout bool
	Err     error
}

func (e ErrNetwork) Error() string {
	if e.Timeout {
		return fmt.Errorf("timeout: %w", e.Err).Error()
	}
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus wraps a response whose status was not 200.
type ErrHTTPStatus struct {
	Code int
	Err  error
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Errorf("http status %d: %w", e.Code, e.Err).Error()
}

func (e ErrHTTPStatus) Unwrap() error {
	return e.Err
}

// ErrReport wraps a failure to write the final result set.
type ErrReport struct {
	Err error
}

func (e ErrReport) Error() string {
	return fmt.Errorf("report results: %w", e.Err).Error()
}

func (e ErrReport) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		if network.Timeout {
			return "timeout"
		}
		return "connection"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return statusLabel(status.Code)
	}
	if errors.Is(err, parser.ErrNoTable) || errors.Is(err, parser.ErrMultipleTables) || errors.Is(err, parser.ErrMissingColumn) {
		return "table"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

func statusLabel(code int) string {
	switch code {
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "http_status"
	}
}
