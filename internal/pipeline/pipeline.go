// Package pipeline wires the reconstruction stages together: directory scan,
// timestamp parsing, sequence grouping, and per-sequence merge, resample,
// statistics, and artifact emission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	"github.com/celltrace-lab/celltrace/internal/core/config"
	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
	"github.com/celltrace-lab/celltrace/internal/core/profile"
	"github.com/celltrace-lab/celltrace/internal/core/resample"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
	"github.com/celltrace-lab/celltrace/internal/core/series"
	"github.com/celltrace-lab/celltrace/internal/core/statistics"
)

// ChunkLoader returns one capture file's rows in file-internal order. A
// failed load is a per-file failure; the pipeline substitutes an empty table
// and records the error.
type ChunkLoader interface {
	Load(ctx context.Context, path string) (series.Table, error)
}

// ArtifactEmitter persists per-sequence outputs. Failures are per-sequence,
// never fatal to the run.
type ArtifactEmitter interface {
	WriteCombined(ctx context.Context, m *series.Merged) (string, error)
	WriteChannelChart(ctx context.Context, seq sequence.Sequence, buckets []resample.Bucket, channels []string) (string, error)
	WriteStatisticsChart(ctx context.Context, seq sequence.Sequence, records []statistics.Record) (string, error)
}

// Options are the resolved processing knobs, decoupled from the config file
// shape so tests can construct them directly.
type Options struct {
	GapTolerance      time.Duration
	NominalDuration   time.Duration
	ResampleInterval  time.Duration
	MinSequenceLength int
	WorkerCount       int
	TimestampColumn   string
	Extensions        []string
	WriteCombined     bool
	WriteCharts       bool
}

// OptionsFromConfig resolves a validated Config into Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		GapTolerance:      cfg.EffectiveGapTolerance(),
		NominalDuration:   cfg.Input.NominalDurationValue(),
		ResampleInterval:  cfg.ResampleInterval(),
		MinSequenceLength: cfg.Processing.MinSequenceLength,
		WorkerCount:       cfg.Processing.WorkerCount,
		TimestampColumn:   cfg.Input.TimestampColumn,
		Extensions:        cfg.Input.Extensions,
		WriteCombined:     cfg.Output.WriteCombined,
		WriteCharts:       cfg.Output.WriteCharts,
	}
}

// Pipeline runs full directory reconstructions. Stateless between runs:
// every Run starts from a fresh scan.
type Pipeline struct {
	opts     Options
	parser   *capture.Parser
	profiles *profile.Set
	loader   ChunkLoader
	emitter  ArtifactEmitter
}

// New builds a Pipeline from resolved options and collaborators.
func New(opts Options, profiles *profile.Set, loader ChunkLoader, emitter ArtifactEmitter) *Pipeline {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	return &Pipeline{
		opts:     opts,
		parser:   capture.NewParser(opts.Extensions),
		profiles: profiles,
		loader:   loader,
		emitter:  emitter,
	}
}

// Run reconstructs all sequences under dir. Only an unreadable or empty
// directory is terminal; every other failure is scoped to one file or one
// sequence and recorded in the report. Sequences are processed in parallel,
// each owning its series and buckets exclusively; on cancellation,
// already-completed sequences keep their artifacts.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Report, error) {
	report := newReport(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}

	// ReadDir sorts by name, so discovery order (and with it the duplicate
	// tie-break) is deterministic across runs.
	var files []capture.File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := p.parser.Parse(filepath.Join(dir, e.Name()))
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedFile{
				Name:   e.Name(),
				Code:   cellerr.CodeBadFilename,
				Reason: err.Error(),
			})
			continue
		}
		files = append(files, f)
	}

	kept, dropped := capture.Dedupe(files)
	for _, d := range dropped {
		report.Duplicates = append(report.Duplicates, d.Name)
	}

	seqs, err := sequence.Group(kept, sequence.Options{
		GapTolerance:    p.opts.GapTolerance,
		NominalDuration: p.opts.NominalDuration,
		MinLength:       p.opts.MinSequenceLength,
	})
	if err != nil {
		report.finish()
		report.LogSummary()
		return report, err
	}

	slog.Info("[Pipeline] Grouped capture files",
		"run_id", report.RunID,
		"files", len(kept),
		"sequences", len(seqs),
		"gap_tolerance", p.opts.GapTolerance.String(),
	)

	// Sequences are independent; each worker writes only its own slot.
	results := make([]SequenceReport, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.WorkerCount)
	for _, seq := range seqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[seq.Index-1] = p.processSequence(gctx, seq)
			return nil
		})
	}
	runErr := g.Wait()

	for _, res := range results {
		if res.Index == 0 {
			continue // cancelled before this sequence started
		}
		report.Sequences = append(report.Sequences, res)
	}

	report.finish()
	report.LogSummary()
	return report, runErr
}

// processSequence owns one sequence end to end. The merged series is only
// referenced here, so it becomes collectable as soon as this returns; the
// pipeline never holds more than WorkerCount raw series at once.
func (p *Pipeline) processSequence(ctx context.Context, seq sequence.Sequence) SequenceReport {
	res := SequenceReport{
		Index:     seq.Index,
		Start:     seq.StartTime(),
		End:       seq.EndTime(),
		FileCount: len(seq.Files),
	}

	tables := make([]series.Table, len(seq.Files))
	for i, f := range seq.Files {
		tbl, err := p.loader.Load(ctx, f.Path)
		if err != nil {
			res.LoadFailures = append(res.LoadFailures, SkippedFile{
				Name:   f.Name,
				Code:   cellerr.CodeLoadFailed,
				Reason: err.Error(),
			})
			continue
		}
		tables[i] = tbl
	}

	merged, err := series.Merge(seq, tables, series.MergerOptions{
		TimestampColumn: p.opts.TimestampColumn,
		Profiles:        p.profiles,
	})
	if err != nil {
		if errors.Is(err, cellerr.ErrNoValidData) {
			res.Code = cellerr.CodeNoValidData
			slog.Warn("[Pipeline] No valid data for sequence", "sequence", seq.Index)
			return res
		}
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.RowCount = len(merged.Rows)
	res.Channels = merged.Channels

	if p.opts.WriteCombined {
		if path, err := p.emitter.WriteCombined(ctx, merged); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", cellerr.CodeEmitFailed, err))
		} else {
			res.Artifacts = append(res.Artifacts, path)
		}
	}

	if p.opts.WriteCharts {
		if len(merged.Channels) == 0 {
			res.Errors = append(res.Errors, cellerr.ErrNoChannels.Error())
			return res
		}
		buckets := resample.Resample(merged, p.opts.ResampleInterval)
		records := statistics.Compute(buckets)

		if path, err := p.emitter.WriteChannelChart(ctx, seq, buckets, merged.Channels); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", cellerr.CodeEmitFailed, err))
		} else {
			res.Artifacts = append(res.Artifacts, path)
		}

		if len(records) == 0 {
			res.Errors = append(res.Errors, "no valid data for statistics")
		} else if path, err := p.emitter.WriteStatisticsChart(ctx, seq, records); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", cellerr.CodeEmitFailed, err))
		} else {
			res.Artifacts = append(res.Artifacts, path)
		}
	}

	return res
}
