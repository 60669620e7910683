// Package csv turns a CSV stream into bounded batches of database rows.
//
// The reader is lazy and forward-only: each Next call parses at most
// ChunkSize rows, so resident memory is O(ChunkSize × row width) regardless
// of file size. Restart means opening the source again and building a new
// reader; there is no mid-stream seek.
package csv

import (
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the batch size used when Options.ChunkSize is unset.
const DefaultChunkSize = 10000

// Options controls parsing behavior.
type Options struct {
	// ChunkSize is the maximum number of data rows per batch. Defaults to
	// DefaultChunkSize; values < 1 are rejected by NewBatchReader.
	ChunkSize int

	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// NoHeader indicates the file has no header row; columns are then named
	// column_1..column_N from the width of the first record.
	NoHeader bool

	// Encoding selects an optional legacy charset for the input:
	// "" (UTF-8), "latin1", "windows-1250" or "windows-1252".
	// Legacy registry exports are routinely windows-125x encoded.
	Encoding string
}

// RowParseError reports a row that could not be parsed: bad quoting, or a
// column count different from the header. Line is 1-based and counts every
// line in the file, header included.
type RowParseError struct {
	Line int
	Raw  string // best-effort raw content; joined fields or the parser message
	Err  error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("csv: row %d: %v (row: %q)", e.Line, e.Err, e.Raw)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// Batch is one bounded group of parsed rows. Values are strings, except empty
// CSV fields which become nil and load as SQL NULL.
type Batch struct {
	Rows [][]any

	// FirstLine is the 1-based file line of the batch's first row.
	FirstLine int
}

// BatchReader parses a CSV stream into batches.
type BatchReader struct {
	src     io.ReadCloser
	cr      *stdcsv.Reader
	opt     Options
	columns []string
	line    int
	done    bool

	// pending holds the first data row when the file has no header: that
	// record was consumed to learn the width and must still be emitted.
	pending     []any
	pendingLine int
}

// NewBatchReader wraps src and consumes the header row (unless NoHeader).
//
// The header establishes both the column names and the required width of
// every subsequent row. Header names are normalized the way the destination
// schema expects: BOM stripped, trimmed, lowercased, spaces to underscores.
// An empty file (no header, no rows) is an error.
//
// The reader owns src and closes it in Close.
func NewBatchReader(src io.ReadCloser, opt Options) (*BatchReader, error) {
	if opt.ChunkSize == 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	if opt.ChunkSize < 1 {
		return nil, fmt.Errorf("csv: chunk size must be >= 1, got %d", opt.ChunkSize)
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	r := io.Reader(src)
	if opt.Encoding != "" {
		enc, err := encodingFor(opt.Encoding)
		if err != nil {
			return nil, err
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	cr := stdcsv.NewReader(r)
	cr.Comma = opt.Comma
	cr.ReuseRecord = true
	// Width is pinned below from the header (or first record), so a short or
	// long row fails at read time instead of corrupting column alignment.
	cr.FieldsPerRecord = 0

	br := &BatchReader{src: src, cr: cr, opt: opt}

	rec, err := br.read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return nil, err
	}

	if opt.NoHeader {
		br.columns = make([]string, len(rec))
		for i := range rec {
			br.columns[i] = fmt.Sprintf("column_%d", i+1)
		}
		br.pending = br.toRow(rec)
		br.pendingLine = br.line
	} else {
		br.columns = normalizeHeader(rec)
	}
	return br, nil
}

// Columns returns the normalized column names, in source order. The header
// row is never emitted as data.
func (r *BatchReader) Columns() []string { return r.columns }

// Next returns the next batch, or io.EOF once the source is exhausted.
//
// A malformed row fails the whole call: no partial batch is returned, so a
// caller that writes one batch per transaction never commits part of a chunk.
// Rows from earlier, already returned batches are unaffected.
func (r *BatchReader) Next(ctx context.Context) (*Batch, error) {
	if r.done {
		return nil, io.EOF
	}

	rows := make([][]any, 0, r.opt.ChunkSize)
	firstLine := 0

	if r.pending != nil {
		rows = append(rows, r.pending)
		firstLine = r.pendingLine
		r.pending = nil
	}

	for len(rows) < r.opt.ChunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := r.read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			r.done = true
			return nil, err
		}

		if firstLine == 0 {
			firstLine = r.line
		}
		rows = append(rows, r.toRow(rec))
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	return &Batch{Rows: rows, FirstLine: firstLine}, nil
}

// Close closes the underlying source.
func (r *BatchReader) Close() error { return r.src.Close() }

// read pulls one record and maps parse failures to *RowParseError.
func (r *BatchReader) read() ([]string, error) {
	r.line++
	rec, err := r.cr.Read()
	if err == nil || err == io.EOF {
		return rec, err
	}

	raw := ""
	if len(rec) > 0 {
		raw = strings.Join(rec, string(r.opt.Comma))
	}
	line := r.line
	if pe, ok := err.(*stdcsv.ParseError); ok && pe.Line > 0 {
		line = pe.Line
	}
	return nil, &RowParseError{Line: line, Raw: raw, Err: err}
}

// toRow converts a record into a database row. Empty fields become nil so
// they load as NULL rather than empty string.
func (r *BatchReader) toRow(rec []string) []any {
	row := make([]any, len(rec))
	for i, v := range rec {
		if v == "" {
			row[i] = nil
			continue
		}
		if hasEdgeSpace(v) {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			row[i] = nil
			continue
		}
		row[i] = v
	}
	return row
}

// normalizeHeader maps raw header cells to destination column names.
func normalizeHeader(hdr []string) []string {
	out := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = h
	}
	return out
}

// hasEdgeSpace reports whether s starts or ends with ASCII whitespace.
// Cheaper than unconditional TrimSpace on hot rows.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[0] == '\t' || s[0] == '\r' || s[0] == '\n' ||
		s[len(s)-1] == ' ' || s[len(s)-1] == '\t' || s[len(s)-1] == '\r' || s[len(s)-1] == '\n'
}

func encodingFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1250":
		return charmap.Windows1250, nil
	case "windows-1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}
