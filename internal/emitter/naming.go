// Package emitter persists per-sequence artifacts: the combined workbook and
// the voltage / statistics charts.
package emitter

import (
	"fmt"

	"github.com/celltrace-lab/celltrace/internal/core/capture"
	"github.com/celltrace-lab/celltrace/internal/core/sequence"
)

// BaseName renders the shared artifact stem for a sequence:
// sequence_<index>_<start>_to_<end>. Both tokens use the capture filename
// format; the end token is the start of the sequence's last file, matching
// the window the logger itself named.
func BaseName(seq sequence.Sequence) string {
	return fmt.Sprintf("sequence_%d_%s_to_%s",
		seq.Index,
		capture.FormatToken(seq.StartTime()),
		capture.FormatToken(seq.Files[len(seq.Files)-1].StartTime),
	)
}
