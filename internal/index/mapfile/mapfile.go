// Package mapfile reads and writes map files: flat, sorted indexes of
// `executable:package` lines, one file per (channel, subdir) pair, named
// `<channel>.<subdir>.map`.
package mapfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
)

// Ext is the file extension of every map file.
const Ext = ".map"

// LowSentinel and HighSentinel bound a package name in byte order. Package
// names are drawn from [a-z0-9._-], all of which sort strictly above the
// space and strictly below the tilde.
const (
	LowSentinel  = " "
	HighSentinel = "~"
)

const maxLineSize = 1 << 20

// Entry is one executable:package line.
type Entry struct {
	Executable string
	Package    string
}

// Compare orders entries by executable name, then package name.
func (e Entry) Compare(o Entry) int {
	if c := strings.Compare(e.Executable, o.Executable); c != 0 {
		return c
	}
	return strings.Compare(e.Package, o.Package)
}

func (e Entry) String() string {
	return e.Executable + ":" + e.Package
}

// MapFile is a parsed map file. Entries are sorted by (Executable, Package)
// and must not be modified after Load returns.
type MapFile struct {
	Path    string
	Channel string
	Subdir  string
	Entries []Entry
}

// Len returns the number of entries.
func (m *MapFile) Len() int {
	return len(m.Entries)
}

// ParseName splits a map file path into its channel and subdir.
func ParseName(path string) (channel, subdir string, err error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, Ext) {
		return "", "", fmt.Errorf("%w: %q lacks %s suffix", apperrors.ErrInvalidMapFileName, base, Ext)
	}
	channel, subdir, ok := strings.Cut(strings.TrimSuffix(base, Ext), ".")
	if channel == "" {
		return "", "", fmt.Errorf("%w: %q has no channel", apperrors.ErrInvalidMapFileName, base)
	}
	if !ok || subdir == "" {
		return "", "", fmt.Errorf("%w: %q has no subdir", apperrors.ErrInvalidMapFileName, base)
	}
	return channel, subdir, nil
}

// FileName builds the map file name for a channel and subdir.
func FileName(channel, subdir string) string {
	return channel + "." + subdir + Ext
}

// Parse splits every line at its first colon. A line without a colon becomes
// an entry with an empty package. Sort order is not checked.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	entries := make([]Entry, 0, 1024)
	for scanner.Scan() {
		exe, pkg, _ := strings.Cut(scanner.Text(), ":")
		entries = append(entries, Entry{Executable: exe, Package: pkg})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Load opens and parses the map file at path.
func Load(path string) (*MapFile, error) {
	channel, subdir, err := ParseName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFileRead, err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", apperrors.ErrFileRead, path, err)
	}
	return &MapFile{
		Path:    path,
		Channel: channel,
		Subdir:  subdir,
		Entries: entries,
	}, nil
}
