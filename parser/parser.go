// Package parser extracts package metadata from channel HTML pages.
package parser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/condastats/models"
)

// Titles of the detail page nodes carrying each field.
const (
	TitleDownloadCount = "Download Count"
	TitleHomePage      = "Home Page"
	TitleLastUpload    = "Last upload"
)

// NameColumn is the listing table header holding package names.
const NameColumn = "Package Name"

var (
	// ErrNoTable is returned when a listing page holds no table.
	ErrNoTable = errors.New("parser: no table found")
	// ErrMultipleTables is returned when a listing page holds more than one table.
	ErrMultipleTables = errors.New("parser: more than one table found")
	// ErrMissingColumn is returned when the listing table lacks the name column.
	ErrMissingColumn = errors.New("parser: column not found")
)

var timeUnits = []struct {
	re  *regexp.Regexp
	set func(*models.LastUpload, int)
}{
	{regexp.MustCompile(`(\d+)\s+years?\b`), func(l *models.LastUpload, v int) { l.Years = v }},
	{regexp.MustCompile(`(\d+)\s+months?\b`), func(l *models.LastUpload, v int) { l.Months = v }},
	{regexp.MustCompile(`(\d+)\s+days?\b`), func(l *models.LastUpload, v int) { l.Days = v }},
}

// Document is a parsed HTML page searchable by title attribute.
type Document struct {
	doc *goquery.Document
}

// NewDocument parses r into a Document.
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// FirstWithTitle returns the first node in document order whose title
// attribute equals title.
func (d *Document) FirstWithTitle(title string) (*goquery.Selection, bool) {
	sel := d.doc.Find(fmt.Sprintf("[title=%q]", title)).First()
	return sel, sel.Length() > 0
}

// DownloadCount reads the number nested in the download count node.
func (d *Document) DownloadCount() (int, bool) {
	tag, ok := d.FirstWithTitle(TitleDownloadCount)
	if !ok {
		return 0, false
	}
	span := tag.Find("span").First()
	if span.Length() == 0 {
		return 0, false
	}
	text := strings.ReplaceAll(strings.TrimSpace(span.Text()), ",", "")
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return count, true
}

// HomePage returns the link target of the home page node.
func (d *Document) HomePage() (string, bool) {
	tag, ok := d.FirstWithTitle(TitleHomePage)
	if !ok {
		return "", false
	}
	return tag.Attr("href")
}

// LastUpload parses the relative time held by the third child of the last
// upload node. The result is absent only when the node itself is missing.
func (d *Document) LastUpload() (models.LastUpload, bool) {
	tag, ok := d.FirstWithTitle(TitleLastUpload)
	if !ok {
		return models.LastUpload{}, false
	}
	return ParseTimeSince(tag.Contents().Eq(2).Text()), true
}

// Record collects every field of a detail page.
func (d *Document) Record() models.PackageRecord {
	var rec models.PackageRecord
	if count, ok := d.DownloadCount(); ok {
		rec.Downloads = &count
	}
	if link, ok := d.HomePage(); ok {
		rec.HomePage = &link
	}
	if since, ok := d.LastUpload(); ok {
		rec.LastUpload = &since
	}
	return rec
}

// ParseTimeSince extracts years, months and days from text such as
// "updated 2 years, 3 months ago". Missing units are zero.
func ParseTimeSince(text string) models.LastUpload {
	var out models.LastUpload
	for _, unit := range timeUnits {
		match := unit.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if v, err := strconv.Atoi(match[1]); err == nil {
			unit.set(&out, v)
		}
	}
	return out
}

// Column returns the cells of the named column of the single table in the
// document, in row order. Empty cells are skipped.
func (d *Document) Column(header string) ([]string, error) {
	tables := d.doc.Find("table")
	switch tables.Length() {
	case 0:
		return nil, ErrNoTable
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d tables", ErrMultipleTables, tables.Length())
	}

	rows := tables.Find("tr")
	headerRow := tables.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = rows.First()
	}

	index := -1
	headerRow.Children().EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if strings.TrimSpace(cell.Text()) == header {
			index = i
			return false
		}
		return true
	})
	if index < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, header)
	}

	values := make([]string, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		if row.IsSelection(headerRow) {
			return
		}
		cells := row.Children()
		if cells.Length() <= index {
			return
		}
		if text := strings.TrimSpace(cells.Eq(index).Text()); text != "" {
			values = append(values, text)
		}
	})
	return values, nil
}
