// Package lookup answers "which package provides this executable?" over one
// map file or over every map file on a search path.
package lookup

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/matcher"
)

// WindowsSubdirPrefix starts the name of every Windows subdir (win-64, win-32,
// win-arm64).
const WindowsSubdirPrefix = "win"

// windowsSuffixes are tried, once each, when a bare name misses on a
// Windows subdir.
var windowsSuffixes = []string{".exe", ".bat"}

// ExactFind returns the entries of mf whose executable is exactly exe. On a
// Windows subdir a miss on a name without .exe or .bat is retried with each
// suffix appended and the hits are combined. The returned slice aliases mf
// and must not be modified.
func ExactFind(mf *mapfile.MapFile, exe string) []mapfile.Entry {
	if found := exactRange(mf.Entries, exe); len(found) > 0 {
		return found
	}
	if !strings.HasPrefix(mf.Subdir, WindowsSubdirPrefix) || hasWindowsSuffix(exe) {
		return nil
	}
	var found []mapfile.Entry
	for _, suffix := range windowsSuffixes {
		found = append(found, exactRange(mf.Entries, exe+suffix)...)
	}
	return found
}

func hasWindowsSuffix(exe string) bool {
	for _, suffix := range windowsSuffixes {
		if strings.HasSuffix(exe, suffix) {
			return true
		}
	}
	return false
}

// exactRange bisects entries for the block keyed by exe: the left edge is
// the first entry whose executable is >= exe, so colon-less lines with an
// empty package are included, the right edge the first entry
// > (exe, HighSentinel).
func exactRange(entries []mapfile.Entry, exe string) []mapfile.Entry {
	left := sort.Search(len(entries), func(i int) bool {
		return entries[i].Executable >= exe
	})
	if left == len(entries) || entries[left].Executable != exe {
		return nil
	}
	high := mapfile.Entry{Executable: exe, Package: mapfile.HighSentinel}
	tail := entries[left:]
	right := left + sort.Search(len(tail), func(i int) bool {
		return tail[i].Compare(high) > 0
	})
	return entries[left:right:right]
}

// SubstringFind scans every entry of mf in file order and keeps those whose
// executable satisfies m. A nil m matches names containing exe.
func SubstringFind(mf *mapfile.MapFile, exe string, m matcher.Matcher) []mapfile.Entry {
	if m == nil {
		m = matcher.Substring(exe)
	}
	found := make([]mapfile.Entry, 0)
	for _, e := range mf.Entries {
		if m.Match(e.Executable) {
			found = append(found, e)
		}
	}
	return found
}
