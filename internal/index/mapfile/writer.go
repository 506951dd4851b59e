package mapfile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Sort orders entries by (Executable, Package) and drops duplicates, which
// is the precondition every lookup relies on.
func Sort(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, Entry.Compare)
	return slices.Compact(sorted)
}

// Format renders entries as map file content: sorted, one entry per line,
// newline-terminated. No entries render as the empty string.
func Format(entries []Entry) string {
	sorted := Sort(entries)
	if len(sorted) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range sorted {
		b.WriteString(e.Executable)
		b.WriteByte(':')
		b.WriteString(e.Package)
		b.WriteByte('\n')
	}
	return b.String()
}

// Writer writes map files into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes map files into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write atomically replaces <dir>/<channel>.<subdir>.map with the formatted
// entries. It writes to a .tmp file first and renames on success.
func (w *Writer) Write(channel, subdir string, entries []Entry) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating map file directory: %w", err)
	}
	finalPath := filepath.Join(w.dir, FileName(channel, subdir))
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp map file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(Format(entries)); err != nil {
		return "", fmt.Errorf("writing map file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing map file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming map file: %w", err)
	}
	return finalPath, nil
}
