package resample

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/celltrace-lab/celltrace/internal/core/series"
)

// Bucket is one fixed-width interval of a resampled series. Values holds the
// per-channel representative sample; channels with no valid reading in the
// interval carry an invalid Sample, never zero.
type Bucket struct {
	Start  time.Time
	Values map[string]series.Sample
}

type accumulator struct {
	sum   decimal.Decimal
	count int64
}

// Resample buckets a merged series into fixed intervals anchored at the
// sequence start. The representative per-channel value is the arithmetic
// mean of the valid samples in the bucket. Buckets that contain rows but no
// valid sample for any channel are still emitted so downstream time axes
// stay evenly spaced; spans with no rows at all (a gap inside one sequence
// should not happen, but a misbehaving loader must not crash us) are
// omitted.
func Resample(m *series.Merged, interval time.Duration) []Bucket {
	if m == nil || len(m.Rows) == 0 || interval <= 0 {
		return nil
	}

	anchor := m.Sequence.StartTime()
	accs := make(map[int64]map[string]*accumulator)
	for _, row := range m.Rows {
		idx := int64(row.Timestamp.Sub(anchor) / interval)
		byChannel, ok := accs[idx]
		if !ok {
			byChannel = make(map[string]*accumulator, len(m.Channels))
			accs[idx] = byChannel
		}
		for _, ch := range m.Channels {
			s, ok := row.Channels[ch]
			if !ok || !s.Valid {
				continue
			}
			acc, ok := byChannel[ch]
			if !ok {
				acc = &accumulator{sum: decimal.Zero}
				byChannel[ch] = acc
			}
			acc.sum = acc.sum.Add(s.Value)
			acc.count++
		}
	}

	indices := make([]int64, 0, len(accs))
	for idx := range accs {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]Bucket, 0, len(indices))
	for _, idx := range indices {
		b := Bucket{
			Start:  anchor.Add(time.Duration(idx) * interval),
			Values: make(map[string]series.Sample, len(m.Channels)),
		}
		for _, ch := range m.Channels {
			if acc, ok := accs[idx][ch]; ok && acc.count > 0 {
				b.Values[ch] = series.ValidSample(acc.sum.Div(decimal.NewFromInt(acc.count)))
			} else {
				b.Values[ch] = series.Sample{}
			}
		}
		out = append(out, b)
	}
	return out
}
