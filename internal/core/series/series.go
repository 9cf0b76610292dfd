package series

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
	"github.com/celltrace-lab/celltrace/internal/core/profile"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
)

// Sample is a tagged channel reading: either a valid decimal value or
// invalid (missing, non-numeric, or zero on channels where zero is a logging
// artifact). The zero Sample is invalid.
type Sample struct {
	Valid bool
	Value decimal.Decimal
}

// ValidSample wraps a decimal into a valid Sample.
func ValidSample(v decimal.Decimal) Sample {
	return Sample{Valid: true, Value: v}
}

// Coerce converts a raw cell into a Sample. Empty and non-numeric cells are
// invalid; literal zero is invalid unless zeroValid is set for the channel.
func Coerce(raw string, zeroValid bool) Sample {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sample{}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return Sample{}
	}
	if v.IsZero() && !zeroValid {
		return Sample{}
	}
	return ValidSample(v)
}

// Table is the chunk-loader contract: one capture file's worth of rows, in
// file-internal chronological order, with the header row split off. Cells
// are raw strings exactly as read.
type Table struct {
	Header []string
	Rows   [][]string
}

// Row is one merged series entry. Raw preserves every cell of the source row
// aligned with Merged.Columns, so the combined output can pass through
// columns the core never interprets.
type Row struct {
	Timestamp time.Time
	Channels  map[string]Sample
	Raw       []string
}

// Merged is the per-sequence concatenated series. Rows are strictly
// increasing by timestamp; duplicates at file boundaries resolve keep-first.
type Merged struct {
	Sequence sequence.Sequence

	// Columns is the canonical header in first-file order.
	Columns []string

	// Channels are the Columns recognized as telemetry channels, in
	// Columns order.
	Channels []string

	Rows []Row
}

// timestampLayouts are tried in order against raw timestamp cells. The
// logger writes the first form; the rest cover re-saved workbooks.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"01-02-06 15:04:05",
}

// ParseTimestamp parses a raw timestamp cell against the accepted layouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// MergerOptions configure column interpretation.
type MergerOptions struct {
	// TimestampColumn is the header of the time column, matched
	// case-insensitively. Falls back to column 0 when absent.
	TimestampColumn string

	// Profiles decide which columns are channels and whether zero is valid.
	Profiles *profile.Set
}

// Merge concatenates a sequence's loaded tables in file order into one
// ordered series. Rows with missing or unparseable timestamps are dropped.
// When two rows carry the same timestamp (capture windows overlap by one
// sample at rotation), the first occurrence wins. Returns ErrNoValidData if
// nothing survives filtering.
func Merge(seq sequence.Sequence, tables []Table, opts MergerOptions) (*Merged, error) {
	m := &Merged{Sequence: seq}

	var (
		tsIdx    = -1
		colIndex map[string]int // canonical column -> position
		zeroOK   []bool         // per canonical column; only meaningful for channels
		isChan   []bool
	)

	for _, table := range tables {
		if len(table.Header) == 0 {
			continue
		}
		if m.Columns == nil {
			m.Columns = append([]string(nil), table.Header...)
			colIndex = make(map[string]int, len(m.Columns))
			isChan = make([]bool, len(m.Columns))
			zeroOK = make([]bool, len(m.Columns))
			for i, col := range m.Columns {
				colIndex[col] = i
				if strings.EqualFold(col, opts.TimestampColumn) && tsIdx < 0 {
					tsIdx = i
					continue
				}
				if p, ok := opts.Profiles.Match(col); ok {
					isChan[i] = true
					zeroOK[i] = p.ZeroValid
					m.Channels = append(m.Channels, col)
				}
			}
			if tsIdx < 0 {
				tsIdx = 0
			}
		}

		// Later files may reorder or drop columns; remap by header name.
		remap := identityMap(len(m.Columns))
		if !sameHeader(m.Columns, table.Header) {
			remap = make([]int, len(m.Columns))
			byName := make(map[string]int, len(table.Header))
			for i, col := range table.Header {
				byName[col] = i
			}
			for i, col := range m.Columns {
				if src, ok := byName[col]; ok {
					remap[i] = src
				} else {
					remap[i] = -1
				}
			}
		}

		for _, cells := range table.Rows {
			raw := make([]string, len(m.Columns))
			for i, src := range remap {
				if src >= 0 && src < len(cells) {
					raw[i] = cells[src]
				}
			}

			ts, ok := ParseTimestamp(raw[tsIdx])
			if !ok {
				continue
			}
			// Keep-first: the row from the earlier file (or earlier in the
			// same file) owns its timestamp.
			if len(m.Rows) > 0 && !ts.After(m.Rows[len(m.Rows)-1].Timestamp) {
				continue
			}

			channels := make(map[string]Sample, len(m.Channels))
			for i, col := range m.Columns {
				if !isChan[i] {
					continue
				}
				channels[col] = Coerce(raw[i], zeroOK[i])
			}

			m.Rows = append(m.Rows, Row{Timestamp: ts, Channels: channels, Raw: raw})
		}
	}

	if len(m.Rows) == 0 {
		return nil, cellerr.ErrNoValidData
	}
	return m, nil
}

func identityMap(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
