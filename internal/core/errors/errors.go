package errors

import "errors"

// Sentinel errors for the reconstruction pipeline. Callers branch on these
// with errors.Is to decide whether a failure is terminal for the run,
// the directory, or a single sequence.
var (
	// ErrNoSequences means the input directory yielded no parseable capture
	// files at all. Terminal for the directory.
	ErrNoSequences = errors.New("no valid sequences found")

	// ErrNoValidData means a sequence's files loaded but produced zero usable
	// rows after filtering. Terminal for that sequence only.
	ErrNoValidData = errors.New("no valid data")

	// ErrNoChannels means a merged series contains no recognized voltage
	// channel columns, so resampling and statistics are skipped.
	ErrNoChannels = errors.New("no voltage channels found")
)

// Report codes attached to per-file and per-sequence entries in the run report.
const (
	CodeBadFilename    = "bad_filename"
	CodeDuplicateStart = "duplicate_start_time"
	CodeLoadFailed     = "load_failed"
	CodeNoValidData    = "no_valid_data"
	CodeEmitFailed     = "emit_failed"
)
