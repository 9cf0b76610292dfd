package sequence

import (
	"sort"
	"time"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
)

// Sequence is a maximal run of capture files whose start times are no further
// apart than the gap tolerance. Built once by Group, immutable after.
type Sequence struct {
	// Index is the 1-based ordinal by order of first appearance in time.
	Index int

	// Files are strictly increasing by StartTime.
	Files []capture.File

	// NominalDuration is the capture window each file nominally covers,
	// used to derive EndTime.
	NominalDuration time.Duration
}

// StartTime is the start instant of the first file.
func (s Sequence) StartTime() time.Time {
	return s.Files[0].StartTime
}

// EndTime is the start of the last file plus the nominal capture duration.
func (s Sequence) EndTime() time.Time {
	return s.Files[len(s.Files)-1].StartTime.Add(s.NominalDuration)
}

// Options control how files are partitioned into sequences.
type Options struct {
	// GapTolerance is the maximum allowed difference between consecutive
	// files' start times for them to belong to the same sequence.
	GapTolerance time.Duration

	// NominalDuration is the time window one capture file covers.
	NominalDuration time.Duration

	// MinLength drops sequences with fewer files. Values below 1 are
	// treated as 1 (keep everything).
	MinLength int
}

// Group sorts files by start time and partitions them into contiguous
// sequences. Sorting is stable, so files sharing a start time (which Dedupe
// should have removed already) keep discovery order. Returns ErrNoSequences
// when no sequence survives.
func Group(files []capture.File, opts Options) ([]Sequence, error) {
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}
	if len(files) == 0 {
		return nil, cellerr.ErrNoSequences
	}

	sorted := make([]capture.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var runs [][]capture.File
	current := []capture.File{sorted[0]}
	for _, f := range sorted[1:] {
		gap := f.StartTime.Sub(current[len(current)-1].StartTime)
		if gap <= opts.GapTolerance {
			current = append(current, f)
			continue
		}
		runs = append(runs, current)
		current = []capture.File{f}
	}
	runs = append(runs, current)

	var out []Sequence
	for _, run := range runs {
		if len(run) < opts.MinLength {
			continue
		}
		out = append(out, Sequence{
			Index:           len(out) + 1,
			Files:           run,
			NominalDuration: opts.NominalDuration,
		})
	}
	if len(out) == 0 {
		return nil, cellerr.ErrNoSequences
	}
	return out, nil
}
