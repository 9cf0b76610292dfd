package statistics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/celltrace-lab/celltrace/internal/core/resample"
)

// Statistic names reported per bucket.
const (
	StatMean   = "mean"
	StatMin    = "min"
	StatMax    = "max"
	StatSpread = "spread"
)

// Reducer folds channel values into a single running statistic. Implement
// and register in Reducers to add a statistic; Compute never switches on
// names.
type Reducer interface {
	// Initial returns the statistic after the first valid channel value.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds another channel value into the running statistic.
	Apply(current, incoming decimal.Decimal) decimal.Decimal
}

// Reducers is the registry of primitive per-bucket statistics. Mean and
// spread are derived after the fold (mean needs the count, spread needs both
// extrema), so only sum/min/max fold.
var Reducers = map[string]Reducer{
	"sum":   sumReducer{},
	StatMin: minReducer{},
	StatMax: maxReducer{},
}

type sumReducer struct{}

func (sumReducer) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (sumReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }

type minReducer struct{}

func (minReducer) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (minReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.LessThan(cur) {
		return inc
	}
	return cur
}

type maxReducer struct{}

func (maxReducer) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (maxReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.GreaterThan(cur) {
		return inc
	}
	return cur
}

// Record is the per-bucket cross-channel summary: statistics over the set of
// channels holding a valid value in that bucket. Buckets where no channel is
// valid are omitted from the output entirely, never zero-filled.
type Record struct {
	BucketStart       time.Time
	Mean              decimal.Decimal
	Min               decimal.Decimal
	Max               decimal.Decimal
	Spread            decimal.Decimal
	ValidChannelCount int
}

// Compute reduces each resampled bucket across its valid channels.
func Compute(buckets []resample.Bucket) []Record {
	var out []Record
	for _, b := range buckets {
		rec, ok := computeBucket(b)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func computeBucket(b resample.Bucket) (Record, bool) {
	state := make(map[string]decimal.Decimal, len(Reducers))
	count := 0
	for _, s := range b.Values {
		if !s.Valid {
			continue
		}
		if count == 0 {
			for name, r := range Reducers {
				state[name] = r.Initial(s.Value)
			}
		} else {
			for name, r := range Reducers {
				state[name] = r.Apply(state[name], s.Value)
			}
		}
		count++
	}
	if count == 0 {
		return Record{}, false
	}

	minV, maxV := state[StatMin], state[StatMax]
	return Record{
		BucketStart:       b.Start,
		Mean:              state["sum"].Div(decimal.NewFromInt(int64(count))),
		Min:               minV,
		Max:               maxV,
		Spread:            maxV.Sub(minV),
		ValidChannelCount: count,
	}, true
}
