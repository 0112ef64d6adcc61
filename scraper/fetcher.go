package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/condastats/config"
	"github.com/aluiziolira/condastats/parser"
	"github.com/gocolly/colly/v2"
)

func newCollector(cfg *config.Config) (*colly.Collector, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Workers,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Workers,
	}); err != nil {
		return nil, fmt.Errorf("configure parallelism: %w", err)
	}
	return collector, nil
}

// fetch performs one GET of rawURL and parses the body. Each call works on
// its own clone of the base collector, so callbacks never cross tasks.
func (s *Scraper) fetch(ctx context.Context, phase, rawURL string) (*parser.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		doc      *parser.Document
		parseErr error
		status   int
		start    time.Time
	)

	c := s.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest(phase)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		s.Metrics.ObserveDuration(phase, time.Since(start))
		if r.StatusCode != http.StatusOK {
			return
		}
		doc, parseErr = parser.NewDocument(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		if !start.IsZero() {
			s.Metrics.ObserveDuration(phase, time.Since(start))
		}
	})

	err := c.Visit(rawURL)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("unexpected response for %s", rawURL)
	}
	if err != nil {
		return nil, classifyError(err, status)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if doc == nil {
		return nil, fmt.Errorf("no document for %s", rawURL)
	}
	return doc, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetwork{Timeout: true, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrNetwork{Timeout: true, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNetwork{Err: err}
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		wrapped := err
		if wrapped == nil {
			wrapped = errors.New(http.StatusText(statusCode))
		}
		return ErrHTTPStatus{Code: statusCode, Err: wrapped}
	}

	return err
}
