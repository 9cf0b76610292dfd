package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
)

// SkippedFile is one input file excluded from processing, with the report
// code and human-readable reason.
type SkippedFile struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// SequenceReport summarizes one sequence's processing outcome. Code is empty
// on success; artifacts lists whatever was written even when later stages
// failed (best-effort partial results).
type SequenceReport struct {
	Index        int           `json:"index"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	FileCount    int           `json:"file_count"`
	RowCount     int           `json:"row_count"`
	Channels     []string      `json:"channels,omitempty"`
	Artifacts    []string      `json:"artifacts,omitempty"`
	LoadFailures []SkippedFile `json:"load_failures,omitempty"`
	Code         string        `json:"code,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}

// Report is the user-visible outcome of one full run: every skipped file,
// dropped duplicate, and per-sequence result.
type Report struct {
	RunID      string           `json:"run_id"`
	Dir        string           `json:"dir"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Skipped    []SkippedFile    `json:"skipped_files,omitempty"`
	Duplicates []string         `json:"dropped_duplicates,omitempty"`
	Sequences  []SequenceReport `json:"sequences,omitempty"`
}

func newReport(dir string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Dir:       dir,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Report) finish() {
	r.FinishedAt = time.Now().UTC()
}

// ArtifactCount is the total number of files written across all sequences.
func (r *Report) ArtifactCount() int {
	n := 0
	for _, s := range r.Sequences {
		n += len(s.Artifacts)
	}
	return n
}

// LogSummary emits the end-of-run summary required of every run: skipped
// files, dropped duplicates, and sequences that produced no valid data.
func (r *Report) LogSummary() {
	slog.Info("[Pipeline] Run complete",
		"run_id", r.RunID,
		"dir", r.Dir,
		"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		"sequences", len(r.Sequences),
		"artifacts", r.ArtifactCount(),
		"skipped_files", len(r.Skipped),
		"dropped_duplicates", len(r.Duplicates),
	)
	for _, f := range r.Skipped {
		slog.Warn("[Pipeline] Skipped file", "run_id", r.RunID, "file", f.Name, "reason", f.Reason)
	}
	for _, name := range r.Duplicates {
		slog.Warn("[Pipeline] Dropped duplicate start time",
			"run_id", r.RunID, "file", name, "code", cellerr.CodeDuplicateStart)
	}
	for _, s := range r.Sequences {
		if s.Code != "" {
			slog.Warn("[Pipeline] Sequence produced no artifacts",
				"run_id", r.RunID, "sequence", s.Index, "code", s.Code)
			continue
		}
		for _, e := range s.Errors {
			slog.Warn("[Pipeline] Sequence error", "run_id", r.RunID, "sequence", s.Index, "error", e)
		}
	}
}
