package emitter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	"github.com/celltrace-lab/celltrace/internal/core/resample"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
	"github.com/celltrace-lab/celltrace/internal/core/series"
	"github.com/celltrace-lab/celltrace/internal/core/statistics"
)

func twoFileSequence(t *testing.T) sequence.Sequence {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sequence.Sequence{
		Index: 1,
		Files: []capture.File{
			{Name: "20240101000000-00.xlsx", StartTime: start},
			{Name: "20240101010000-00.xlsx", StartTime: start.Add(time.Hour)},
		},
		NominalDuration: time.Hour,
	}
}

func TestBaseName_MatchesNamingContract(t *testing.T) {
	require.Equal(t,
		"sequence_1_20240101000000_to_20240101010000",
		BaseName(twoFileSequence(t)),
	)
}

func TestWriteCombined_RoundTripsRows(t *testing.T) {
	dir := t.TempDir()
	seq := twoFileSequence(t)
	start := seq.StartTime()

	m := &series.Merged{
		Sequence: seq,
		Columns:  []string{"Time", "Cell Voltage 1", "Note"},
		Channels: []string{"Cell Voltage 1"},
		Rows: []series.Row{
			{Timestamp: start, Raw: []string{"2024-01-01 00:00:00", "3.70", "boot"}},
			{Timestamp: start.Add(time.Second), Raw: []string{"2024-01-01 00:00:01", "3.71", ""}},
		},
	}

	path, err := New(dir).WriteCombined(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sequence_1_20240101000000_to_20240101010000.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Time", "Cell Voltage 1", "Note"}, rows[0])
	require.Equal(t, "boot", rows[1][2])
	require.Equal(t, "3.71", rows[2][1])
}

func TestWriteCharts_ProducePNGFiles(t *testing.T) {
	dir := t.TempDir()
	seq := twoFileSequence(t)
	start := seq.StartTime()

	var buckets []resample.Bucket
	for i := 0; i < 10; i++ {
		buckets = append(buckets, resample.Bucket{
			Start: start.Add(time.Duration(i) * time.Minute),
			Values: map[string]series.Sample{
				"Cell Voltage 1": series.ValidSample(decimal.NewFromFloat(3.7 + float64(i)*0.01)),
			},
		})
	}
	records := statistics.Compute(buckets)
	require.Len(t, records, 10)

	e := New(dir)

	plotPath, err := e.WriteChannelChart(context.Background(), seq, buckets, []string{"Cell Voltage 1"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sequence_1_20240101000000_to_20240101010000_voltage_plot.png"), plotPath)
	require.FileExists(t, plotPath)

	statsPath, err := e.WriteStatisticsChart(context.Background(), seq, records)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sequence_1_20240101000000_to_20240101010000_voltage_stats.png"), statsPath)
	require.FileExists(t, statsPath)
}

func TestWriteChannelChart_NoValidData(t *testing.T) {
	seq := twoFileSequence(t)
	buckets := []resample.Bucket{
		{Start: seq.StartTime(), Values: map[string]series.Sample{"Cell Voltage 1": {}}},
		{Start: seq.StartTime().Add(time.Minute), Values: map[string]series.Sample{"Cell Voltage 1": {}}},
	}

	_, err := New(t.TempDir()).WriteChannelChart(context.Background(), seq, buckets, []string{"Cell Voltage 1"})
	require.Error(t, err)
}
