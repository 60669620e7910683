// Package probe inspects a bounded sample of a CSV source before a load
// runs: which columns the loader will create, how many rows parse cleanly,
// and roughly how unique each column is. Everything is best-effort and
// bounded in memory; a probe never reads the full dataset.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"csvload/internal/parser/csv"
	"csvload/internal/source"
)

const (
	// DefaultMaxBytes bounds how much of the source a probe reads.
	DefaultMaxBytes = 64 * 1024

	// distinctCap bounds distinct-value tracking per column so that
	// high-cardinality columns (UUIDs, row ids) cannot grow memory.
	distinctCap = 10000
)

// Options control sampling and parsing.
type Options struct {
	MaxBytes  int    // sample size; DefaultMaxBytes when <= 0
	Delimiter rune   // 0 means sniff from the sample
	Encoding  string // optional source charset, same values as the loader
}

// ColumnStat summarizes one column over the sampled rows.
type ColumnStat struct {
	Name     string
	NonEmpty int  // rows where the column had a value
	Distinct int  // distinct values, capped at distinctCap
	Capped   bool // distinct counting hit the cap
}

// Report is the outcome of one probe.
type Report struct {
	Columns     []string
	Delimiter   rune
	RowsSampled int
	Stats       []ColumnStat

	// BadRow holds the first malformed row, if the sample contained one.
	// The probe stops there; rows before it are still reported.
	BadRow *csv.RowParseError
}

// Run samples the source and inspects it. The sample is cut at the last
// newline so a half row at the boundary is never parsed.
func Run(ctx context.Context, src source.Source, opt Options) (Report, error) {
	sample, err := sampleBytes(ctx, src, opt.MaxBytes)
	if err != nil {
		return Report{}, err
	}
	return Inspect(ctx, sample, opt)
}

// Inspect parses a raw sample through the same reader the loader uses, so
// the reported columns are exactly the columns a load would create.
func Inspect(ctx context.Context, sample []byte, opt Options) (Report, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(sample)
	}

	// Row-at-a-time: a malformed row aborts only itself, so every clean row
	// before it still counts toward the report.
	reader, err := csv.NewBatchReader(io.NopCloser(bytes.NewReader(sample)), csv.Options{
		ChunkSize: 1,
		Comma:     delim,
		Encoding:  opt.Encoding,
	})
	if err != nil {
		return Report{}, fmt.Errorf("probe: %w", err)
	}
	defer reader.Close()

	rep := Report{
		Columns:   reader.Columns(),
		Delimiter: delim,
	}

	sets := make([]map[string]struct{}, len(rep.Columns))
	stats := make([]ColumnStat, len(rep.Columns))
	for i, c := range rep.Columns {
		stats[i].Name = c
		sets[i] = make(map[string]struct{})
	}

	for {
		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rpe *csv.RowParseError
			if errors.As(err, &rpe) {
				rep.BadRow = rpe
				break
			}
			return rep, err
		}

		for _, row := range batch.Rows {
			rep.RowsSampled++
			for i := range rep.Columns {
				v, ok := row[i].(string)
				if !ok || strings.TrimSpace(v) == "" {
					continue
				}
				stats[i].NonEmpty++
				if stats[i].Capped {
					continue
				}
				sets[i][v] = struct{}{}
				if len(sets[i]) >= distinctCap {
					stats[i].Capped = true
					sets[i] = nil
				}
			}
		}
	}

	for i := range stats {
		if stats[i].Capped {
			stats[i].Distinct = distinctCap
			continue
		}
		stats[i].Distinct = len(sets[i])
	}
	rep.Stats = stats
	return rep, nil
}

// SniffDelimiter picks the candidate delimiter that occurs most often in
// the first line of the sample. Commas win ties.
func SniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{c}); n > bestCount {
			best, bestCount = rune(c), n
		}
	}
	return best
}

// sampleBytes reads at most maxBytes from the source and cuts the result
// at the last newline.
func sampleBytes(ctx context.Context, src source.Source, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, int64(maxBytes)))
	if err != nil {
		return nil, fmt.Errorf("probe: read sample: %w", err)
	}

	// Drop a trailing half line unless the sample is the whole file.
	if len(b) == maxBytes {
		if i := bytes.LastIndexByte(b, '\n'); i > 0 {
			b = b[:i+1]
		}
	}
	return b, nil
}

// Render formats a report as a text table sorted by uniqueness, least
// unique first.
func Render(rep Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "delimiter=%q columns=%d sampled_rows=%d\n", rep.Delimiter, len(rep.Columns), rep.RowsSampled)
	if rep.BadRow != nil {
		fmt.Fprintf(&b, "warning: malformed row at line %d, sample truncated there\n", rep.BadRow.Line)
	}

	rows := append([]ColumnStat(nil), rep.Stats...)
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := ratio(rows[i]), ratio(rows[j])
		if ri == rj {
			return rows[i].Name < rows[j].Name
		}
		return ri < rj
	})

	fmt.Fprintf(&b, "%-30s\t%-7s\t%-7s\tratio\tcapped\n", "column", "unique", "rows")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-30s\t%-7d\t%d\t%.1f%%\t%t\n", r.Name, r.Distinct, r.NonEmpty, ratio(r)*100, r.Capped)
	}
	return strings.TrimRight(b.String(), "\n")
}

func ratio(s ColumnStat) float64 {
	if s.NonEmpty == 0 {
		return 0
	}
	return float64(s.Distinct) / float64(s.NonEmpty)
}
