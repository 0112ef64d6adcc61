package config

import (
	"fmt"
	"net/url"
	"time"
)

// Export formats accepted by ExportFormat.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	MaxPages         int
	Limit            int
	Workers          int
	SortByDownloads  bool
	Timeout          time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	CacheFile        string
	LogFile          string
	ExportFile       string
	ExportFormat     string // csv, markdown, or json
	DedupeMaxSize    int
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns defaults for the bioconda channel.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://anaconda.org/bioconda",
		MaxPages:         198,
		Limit:            0,
		Workers:          8,
		SortByDownloads:  true,
		Timeout:          30 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,
		CacheFile:        "package_names.txt",
		LogFile:          "scraping.log",
		ExportFormat:     FormatCSV,
		DedupeMaxSize:    100000,
	}
}

// Pages returns the number of listing pages to fetch. A positive Limit caps
// the run, otherwise every page of the channel is listed.
func (c *Config) Pages() int {
	if c.Limit > 0 {
		return c.Limit
	}
	return c.MaxPages
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("max workers must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	switch c.ExportFormat {
	case FormatCSV, FormatMarkdown, FormatJSON:
	default:
		return fmt.Errorf("export format must be csv, markdown, or json")
	}

	return nil
}
