package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
	"github.com/celltrace-lab/celltrace/internal/core/resample"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
	"github.com/celltrace-lab/celltrace/internal/core/statistics"
)

const (
	chartWidth  = 1280
	chartHeight = 720
	timeFormat  = "01-02 15:04"
)

// WriteChannelChart renders one line per channel over the resampled buckets
// as <base>_voltage_plot.png. "No data" buckets break the line into separate
// segments rather than interpolating across them.
func (e *Emitter) WriteChannelChart(ctx context.Context, seq sequence.Sequence, buckets []resample.Bucket, channels []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var seriesList []chart.Series
	for _, ch := range channels {
		for i, seg := range channelSegments(buckets, ch) {
			name := ch
			if i > 0 {
				// go-chart legends key on names; only label the first segment
				name = ""
			}
			seriesList = append(seriesList, chart.TimeSeries{
				Name:    name,
				XValues: seg.xs,
				YValues: seg.ys,
			})
		}
	}
	if len(seriesList) == 0 {
		return "", fmt.Errorf("channel chart: %w", cellerr.ErrNoValidData)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Cell voltages - sequence %d", seq.Index),
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat),
		},
		YAxis:  chart.YAxis{Name: "Voltage (V)"},
		Series: seriesList,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return e.renderPNG(&graph, BaseName(seq)+"_voltage_plot.png")
}

// WriteStatisticsChart renders the per-bucket cross-channel summary as
// <base>_voltage_stats.png: mean between the min/max envelope, plus the
// spread on its own line near zero.
func (e *Emitter) WriteStatisticsChart(ctx context.Context, seq sequence.Sequence, records []statistics.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(records) < 2 {
		return "", fmt.Errorf("statistics chart: %w", cellerr.ErrNoValidData)
	}

	n := len(records)
	xs := make([]time.Time, n)
	mean := make([]float64, n)
	minY := make([]float64, n)
	maxY := make([]float64, n)
	spread := make([]float64, n)
	for i, r := range records {
		xs[i] = r.BucketStart
		mean[i], _ = r.Mean.Float64()
		minY[i], _ = r.Min.Float64()
		maxY[i], _ = r.Max.Float64()
		spread[i], _ = r.Spread.Float64()
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Voltage statistics - sequence %d", seq.Index),
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat),
		},
		YAxis: chart.YAxis{Name: "Voltage (V)"},
		Series: []chart.Series{
			chart.TimeSeries{Name: "max", XValues: xs, YValues: maxY},
			chart.TimeSeries{Name: "mean", XValues: xs, YValues: mean},
			chart.TimeSeries{Name: "min", XValues: xs, YValues: minY},
			chart.TimeSeries{Name: "spread", XValues: xs, YValues: spread},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return e.renderPNG(&graph, BaseName(seq)+"_voltage_stats.png")
}

func (e *Emitter) renderPNG(graph *chart.Chart, name string) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("[Emitter] Failed to close chart file", "path", path, "error", closeErr)
		}
	}()

	if err := graph.Render(chart.PNG, f); err != nil {
		return "", fmt.Errorf("render chart %s: %w", path, err)
	}
	return path, nil
}

type segment struct {
	xs []time.Time
	ys []float64
}

// channelSegments splits one channel's bucket values into runs of
// consecutive valid samples. go-chart needs at least two points per series,
// so single-point runs are dropped.
func channelSegments(buckets []resample.Bucket, channel string) []segment {
	var segs []segment
	var cur segment
	flush := func() {
		if len(cur.xs) >= 2 {
			segs = append(segs, cur)
		}
		cur = segment{}
	}
	for _, b := range buckets {
		s, ok := b.Values[channel]
		if !ok || !s.Valid {
			flush()
			continue
		}
		y, _ := s.Value.Float64()
		cur.xs = append(cur.xs, b.Start)
		cur.ys = append(cur.ys, y)
	}
	flush()
	return segs
}
