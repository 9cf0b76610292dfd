package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
)

func fileAt(t time.Time) capture.File {
	return capture.File{Name: capture.FormatToken(t) + "-00.xlsx", StartTime: t}
}

func defaultOpts() Options {
	return Options{
		GapTolerance:    90 * time.Minute,
		NominalDuration: time.Hour,
		MinLength:       1,
	}
}

func TestGroup_TwoHourlyFilesWithinTolerance(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{fileAt(base), fileAt(base.Add(time.Hour))}

	seqs, err := Group(files, defaultOpts())
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	require.Equal(t, 1, seqs[0].Index)
	require.Len(t, seqs[0].Files, 2)
	require.Equal(t, base, seqs[0].StartTime())
	require.Equal(t, base.Add(2*time.Hour), seqs[0].EndTime())
}

func TestGroup_TightToleranceSplitsSequences(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{fileAt(base), fileAt(base.Add(time.Hour))}

	opts := defaultOpts()
	opts.GapTolerance = 30 * time.Minute

	seqs, err := Group(files, opts)
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	require.Equal(t, 1, seqs[0].Index)
	require.Equal(t, 2, seqs[1].Index)
	require.Len(t, seqs[0].Files, 1)
	require.Len(t, seqs[1].Files, 1)
}

func TestGroup_UnorderedInputIsSorted(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{
		fileAt(base.Add(2 * time.Hour)),
		fileAt(base),
		fileAt(base.Add(time.Hour)),
	}

	seqs, err := Group(files, defaultOpts())
	require.NoError(t, err)
	require.Len(t, seqs, 1)

	prev := seqs[0].Files[0].StartTime
	for _, f := range seqs[0].Files[1:] {
		require.True(t, f.StartTime.After(prev), "files must be strictly increasing")
		require.LessOrEqual(t, f.StartTime.Sub(prev), defaultOpts().GapTolerance)
		prev = f.StartTime
	}
}

func TestGroup_BoundaryGapExceedsTolerance(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{
		fileAt(base),
		fileAt(base.Add(time.Hour)),
		// 4h reset gap
		fileAt(base.Add(5 * time.Hour)),
		fileAt(base.Add(6 * time.Hour)),
	}

	seqs, err := Group(files, defaultOpts())
	require.NoError(t, err)
	require.Len(t, seqs, 2)

	boundary := seqs[1].StartTime().Sub(seqs[0].Files[len(seqs[0].Files)-1].StartTime)
	require.Greater(t, boundary, defaultOpts().GapTolerance)
}

func TestGroup_GapExactlyAtToleranceStaysTogether(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{fileAt(base), fileAt(base.Add(90 * time.Minute))}

	seqs, err := Group(files, defaultOpts())
	require.NoError(t, err)
	require.Len(t, seqs, 1)
}

func TestGroup_MinLengthDropsShortRuns(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []capture.File{
		fileAt(base),
		// lone file after a reset
		fileAt(base.Add(12 * time.Hour)),
		fileAt(base.Add(13 * time.Hour)),
	}

	opts := defaultOpts()
	opts.MinLength = 2

	seqs, err := Group(files, opts)
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	require.Equal(t, 1, seqs[0].Index)
	require.Len(t, seqs[0].Files, 2)
	require.Equal(t, base.Add(12*time.Hour), seqs[0].StartTime())
}

func TestGroup_EmptyInput(t *testing.T) {
	_, err := Group(nil, defaultOpts())
	require.ErrorIs(t, err, cellerr.ErrNoSequences)
}

func TestGroup_AllRunsBelowMinLength(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := defaultOpts()
	opts.MinLength = 3

	_, err := Group([]capture.File{fileAt(base)}, opts)
	require.ErrorIs(t, err, cellerr.ErrNoSequences)
}
