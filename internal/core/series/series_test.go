package series

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
	"github.com/celltrace-lab/celltrace/internal/core/profile"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
)

func testSequence(start time.Time, files int) sequence.Sequence {
	var fs []capture.File
	for i := 0; i < files; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		fs = append(fs, capture.File{Name: capture.FormatToken(ts) + "-00.xlsx", StartTime: ts})
	}
	return sequence.Sequence{Index: 1, Files: fs, NominalDuration: time.Hour}
}

func testOpts() MergerOptions {
	return MergerOptions{
		TimestampColumn: "Time",
		Profiles:        profile.Default(true),
	}
}

func cell(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		zeroValid bool
		want      Sample
	}{
		{name: "numeric", raw: "3.712", want: ValidSample(decimal.RequireFromString("3.712"))},
		{name: "padded numeric", raw: " 4.05 ", want: ValidSample(decimal.RequireFromString("4.05"))},
		{name: "empty invalid", raw: "", want: Sample{}},
		{name: "non numeric invalid", raw: "n/a", want: Sample{}},
		{name: "zero invalid by default", raw: "0", want: Sample{}},
		{name: "zero point zero invalid", raw: "0.000", want: Sample{}},
		{name: "zero kept when allowed", raw: "0", zeroValid: true, want: ValidSample(decimal.Zero)},
		{name: "negative valid", raw: "-0.02", want: ValidSample(decimal.RequireFromString("-0.02"))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Coerce(tc.raw, tc.zeroValid)
			require.Equal(t, tc.want.Valid, got.Valid)
			if tc.want.Valid {
				require.True(t, tc.want.Value.Equal(got.Value))
			}
		})
	}
}

func TestMerge_ConcatenatesInFileOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 2)

	header := []string{"Time", "Cell Voltage 1", "Cell Voltage 2", "Note"}
	var t1, t2 Table
	t1.Header = header
	t2.Header = header
	for i := 0; i < 5; i++ {
		t1.Rows = append(t1.Rows, []string{cell(start.Add(time.Duration(i) * time.Second)), "3.70", "3.71", "a"})
		t2.Rows = append(t2.Rows, []string{cell(start.Add(time.Hour + time.Duration(i)*time.Second)), "3.72", "3.73", "b"})
	}

	m, err := Merge(seq, []Table{t1, t2}, testOpts())
	require.NoError(t, err)
	require.Equal(t, header, m.Columns)
	require.Equal(t, []string{"Cell Voltage 1", "Cell Voltage 2"}, m.Channels)
	require.Len(t, m.Rows, 10)

	for i := 1; i < len(m.Rows); i++ {
		require.True(t, m.Rows[i].Timestamp.After(m.Rows[i-1].Timestamp))
	}
	// passthrough column survives untouched
	require.Equal(t, "a", m.Rows[0].Raw[3])
	require.Equal(t, "b", m.Rows[9].Raw[3])
}

func TestMerge_DuplicateTimestampKeepsFirst(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 2)
	boundary := start.Add(time.Hour)

	header := []string{"Time", "Cell Voltage 1"}
	t1 := Table{Header: header, Rows: [][]string{
		{cell(start), "3.70"},
		{cell(boundary), "3.71"}, // overlap sample at rotation
	}}
	t2 := Table{Header: header, Rows: [][]string{
		{cell(boundary), "9.99"}, // same instant, later file, dropped
		{cell(boundary.Add(time.Second)), "3.72"},
	}}

	m, err := Merge(seq, []Table{t1, t2}, testOpts())
	require.NoError(t, err)
	require.Len(t, m.Rows, 3)

	s := m.Rows[1].Channels["Cell Voltage 1"]
	require.True(t, s.Valid)
	require.True(t, s.Value.Equal(decimal.RequireFromString("3.71")))
}

func TestMerge_DropsUnparseableTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 1)

	header := []string{"Time", "Cell Voltage 1"}
	tbl := Table{Header: header, Rows: [][]string{
		{"", "3.70"},
		{"not a time", "3.70"},
		{cell(start), "3.70"},
	}}

	m, err := Merge(seq, []Table{tbl}, testOpts())
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)
}

func TestMerge_ZeroNeverValidInSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 1)

	header := []string{"Time", "Cell Voltage 1", "Cell Voltage 2"}
	var tbl Table
	tbl.Header = header
	for i := 0; i < 10; i++ {
		tbl.Rows = append(tbl.Rows, []string{
			cell(start.Add(time.Duration(i) * time.Second)),
			"0",
			fmt.Sprintf("3.7%d", i),
		})
	}

	m, err := Merge(seq, []Table{tbl}, testOpts())
	require.NoError(t, err)
	for _, row := range m.Rows {
		require.False(t, row.Channels["Cell Voltage 1"].Valid)
		require.True(t, row.Channels["Cell Voltage 2"].Valid)
	}
}

func TestMerge_RemapsShuffledLaterHeader(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 2)

	t1 := Table{
		Header: []string{"Time", "Cell Voltage 1", "Note"},
		Rows:   [][]string{{cell(start), "3.70", "x"}},
	}
	t2 := Table{
		Header: []string{"Note", "Time", "Cell Voltage 1"},
		Rows:   [][]string{{"y", cell(start.Add(time.Hour)), "3.72"}},
	}

	m, err := Merge(seq, []Table{t1, t2}, testOpts())
	require.NoError(t, err)
	require.Len(t, m.Rows, 2)
	require.Equal(t, []string{"Time", "Cell Voltage 1", "Note"}, m.Columns)
	require.Equal(t, "y", m.Rows[1].Raw[2])
	require.True(t, m.Rows[1].Channels["Cell Voltage 1"].Valid)
}

func TestMerge_EmptyTablesSignalNoValidData(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 1)

	_, err := Merge(seq, []Table{{}}, testOpts())
	require.ErrorIs(t, err, cellerr.ErrNoValidData)

	_, err = Merge(seq, []Table{{Header: []string{"Time", "Cell Voltage 1"}}}, testOpts())
	require.ErrorIs(t, err, cellerr.ErrNoValidData)
}

func TestMerge_NoTimestampHeaderFallsBackToFirstColumn(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := testSequence(start, 1)

	tbl := Table{
		Header: []string{"Datetime", "Cell Voltage 1"},
		Rows:   [][]string{{cell(start), "3.70"}},
	}

	m, err := Merge(seq, []Table{tbl}, testOpts())
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)
	require.Equal(t, start, m.Rows[0].Timestamp)
}
