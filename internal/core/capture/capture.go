package capture

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TokenLayout is the fixed-width date-time token embedded in capture
// filenames and reused verbatim in output filenames.
const TokenLayout = "20060102150405"

// suffix between the date-time token and the extension, e.g.
// "20240101000000-00.xlsx". The logger always writes channel group 00.
const nameSuffix = "-00"

// File is one discovered capture file with its start instant parsed from the
// filename. Immutable after parsing.
type File struct {
	Path      string
	Name      string
	StartTime time.Time
}

// Parser validates capture filenames and extracts their start instants.
// Extensions are matched case-insensitively and must include the leading dot.
type Parser struct {
	extensions map[string]struct{}
}

// NewParser builds a Parser accepting the given extensions
// (e.g. ".xlsx", ".xls"). An empty list accepts only ".xlsx".
func NewParser(extensions []string) *Parser {
	if len(extensions) == 0 {
		extensions = []string{".xlsx"}
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Parser{extensions: exts}
}

// Parse extracts the start instant from a capture filename of the form
// <YYYYMMDDHHMMSS>-00.<ext>. The returned File carries path as-is; name is
// derived from the path's base. Any deviation from the pattern is an error
// and the caller is expected to skip the file, not abort.
func (p *Parser) Parse(path string) (File, error) {
	name := filepath.Base(path)

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := p.extensions[ext]; !ok {
		return File{}, fmt.Errorf("unrecognized extension %q", ext)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasSuffix(base, nameSuffix) {
		return File{}, fmt.Errorf("missing %q suffix in %q", nameSuffix, name)
	}

	token := strings.TrimSuffix(base, nameSuffix)
	if len(token) != len(TokenLayout) {
		return File{}, fmt.Errorf("date-time token in %q must be %d digits", name, len(TokenLayout))
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return File{}, fmt.Errorf("non-numeric date-time token in %q", name)
		}
	}

	// ParseInLocation rejects impossible calendar dates (month 13, hour 25).
	ts, err := time.ParseInLocation(TokenLayout, token, time.UTC)
	if err != nil {
		return File{}, fmt.Errorf("invalid date-time token in %q: %w", name, err)
	}

	return File{Path: path, Name: name, StartTime: ts}, nil
}

// FormatToken renders an instant back into the filename token format.
// Round-trips with Parse for every valid token.
func FormatToken(t time.Time) string {
	return t.UTC().Format(TokenLayout)
}

// Dedupe drops files whose start instant was already claimed by an
// earlier-discovered file. Input order is discovery order; the first
// occurrence wins. Returns the kept files and the dropped duplicates.
func Dedupe(files []File) (kept, dropped []File) {
	seen := make(map[time.Time]struct{}, len(files))
	for _, f := range files {
		if _, dup := seen[f.StartTime]; dup {
			dropped = append(dropped, f)
			continue
		}
		seen[f.StartTime] = struct{}{}
		kept = append(kept, f)
	}
	return kept, dropped
}
