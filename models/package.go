// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LastUpload is the time elapsed since a package was last uploaded.
type LastUpload struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// PackageRecord holds the metadata scraped from one package page.
// A nil field means the page did not carry the corresponding markup.
type PackageRecord struct {
	Downloads  *int        `json:"downloads"`
	HomePage   *string     `json:"homepage"`
	LastUpload *LastUpload `json:"last_upload"`
}

// ResultSet maps package names to records, keeping insertion order.
type ResultSet struct {
	names   []string
	records map[string]PackageRecord
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[string]PackageRecord)}
}

// Add stores rec under name. A name can only be written once; Add reports
// false and leaves the existing record untouched on a second write.
func (rs *ResultSet) Add(name string, rec PackageRecord) bool {
	if _, ok := rs.records[name]; ok {
		return false
	}
	rs.names = append(rs.names, name)
	rs.records[name] = rec
	return true
}

// Get returns the record stored for name.
func (rs *ResultSet) Get(name string) (PackageRecord, bool) {
	rec, ok := rs.records[name]
	return rec, ok
}

// Len returns the number of packages in the set.
func (rs *ResultSet) Len() int {
	return len(rs.names)
}

// Names returns the package names in iteration order.
func (rs *ResultSet) Names() []string {
	out := make([]string, len(rs.names))
	copy(out, rs.names)
	return out
}

// MarshalJSON encodes the set as a single object whose keys follow the
// iteration order. json.Marshal re-escapes HTML characters in the result;
// encode through a json.Encoder with SetEscapeHTML(false) to keep them.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range rs.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeUnescaped(&buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeUnescaped(&buf, rs.records[name]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeUnescaped(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
