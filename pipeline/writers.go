package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/condastats/models"
	"github.com/nao1215/markdown"
)

// OutputWriter defines the interface for result output.
type OutputWriter interface {
	Write(rs *models.ResultSet) error
	Close() error
}

// output buffers a destination and owns it when it is a file.
type output struct {
	buf    *bufio.Writer
	closer io.Closer
}

func newOutput(w io.Writer) output {
	return output{buf: bufio.NewWriter(w)}
}

func newFileOutput(filename string) (output, error) {
	if err := ensureDir(filename); err != nil {
		return output{}, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return output{}, fmt.Errorf("create output file: %w", err)
	}
	return output{buf: bufio.NewWriter(f), closer: f}, nil
}

func (o output) close() error {
	if err := o.buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if o.closer != nil {
		return o.closer.Close()
	}
	return nil
}

// JSONWriter writes the result set as one JSON object per Write.
type JSONWriter struct {
	out     output
	encoder *json.Encoder
}

// NewJSONWriter writes JSON to w. Closing the writer does not close w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return newJSONWriter(newOutput(w))
}

// NewJSONFileWriter creates filename and writes JSON to it.
func NewJSONFileWriter(filename string) (*JSONWriter, error) {
	out, err := newFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return newJSONWriter(out), nil
}

func newJSONWriter(out output) *JSONWriter {
	encoder := json.NewEncoder(out.buf)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{out: out, encoder: encoder}
}

// Write encodes rs followed by a newline.
func (jw *JSONWriter) Write(rs *models.ResultSet) error {
	if err := jw.encoder.Encode(rs); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if err := jw.out.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes an owned file.
func (jw *JSONWriter) Close() error {
	return jw.out.close()
}

// CSVWriter writes one row per package.
type CSVWriter struct {
	out    output
	writer *csv.Writer
}

var csvHeader = []string{"name", "downloads", "homepage", "years", "months", "days"}

// NewCSVWriter writes CSV to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	out := newOutput(w)
	return &CSVWriter{out: out, writer: csv.NewWriter(out.buf)}
}

// NewCSVFileWriter creates filename and writes CSV to it.
func NewCSVFileWriter(filename string) (*CSVWriter, error) {
	out, err := newFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{out: out, writer: csv.NewWriter(out.buf)}, nil
}

// Write emits the header and a row for each package. Absent fields are
// left empty.
func (cw *CSVWriter) Write(rs *models.ResultSet) error {
	if err := cw.writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, name := range rs.Names() {
		rec, _ := rs.Get(name)
		if err := cw.writer.Write(recordRow(name, rec)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return cw.out.buf.Flush()
}

// Close flushes and closes an owned file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.out.close()
}

// MarkdownWriter renders the result set as a Markdown table.
type MarkdownWriter struct {
	out output
}

// NewMarkdownWriter writes Markdown to w.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{out: newOutput(w)}
}

// NewMarkdownFileWriter creates filename and writes Markdown to it.
func NewMarkdownFileWriter(filename string) (*MarkdownWriter, error) {
	out, err := newFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return &MarkdownWriter{out: out}, nil
}

// Write renders a heading, a package count and the package table.
func (mw *MarkdownWriter) Write(rs *models.ResultSet) error {
	rows := make([][]string, 0, rs.Len())
	for _, name := range rs.Names() {
		rec, _ := rs.Get(name)
		row := recordRow(name, rec)
		for i, cell := range row {
			if cell == "" {
				row[i] = "-"
			}
		}
		rows = append(rows, row)
	}

	md := markdown.NewMarkdown(mw.out.buf)
	md.H1("Package statistics")
	md.PlainText("")
	md.PlainText(fmt.Sprintf("%d packages", rs.Len()))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: csvHeader,
		Rows:   rows,
	})
	if err := md.Build(); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return mw.out.buf.Flush()
}

// Close flushes and closes an owned file.
func (mw *MarkdownWriter) Close() error {
	return mw.out.close()
}

func recordRow(name string, rec models.PackageRecord) []string {
	row := []string{name, "", "", "", "", ""}
	if rec.Downloads != nil {
		row[1] = strconv.Itoa(*rec.Downloads)
	}
	if rec.HomePage != nil {
		row[2] = *rec.HomePage
	}
	if rec.LastUpload != nil {
		row[3] = strconv.Itoa(rec.LastUpload.Years)
		row[4] = strconv.Itoa(rec.LastUpload.Months)
		row[5] = strconv.Itoa(rec.LastUpload.Days)
	}
	return row
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
