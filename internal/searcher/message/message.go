// Package message renders the "command not found" suggestion shown to a
// user who typed an executable that is not installed.
package message

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
)

const indent = "    "

type install struct {
	channel string
	pkg     string
}

type candidate struct {
	channel string
	command string
	pkg     string
}

// Compose renders the suggestion for exe. Exact results win; similar results
// are only shown when there are no exact ones. The text never ends with a
// newline.
func Compose(exe string, exact, similar []lookup.Result) string {
	var b strings.Builder
	switch {
	case len(exact) > 0:
		fmt.Fprintf(&b, "Command '%s' not found in the environment, but can be installed with any of:\n", exe)
		for _, in := range distinctInstalls(exact) {
			fmt.Fprintf(&b, "\n%s$ conda install -c %s %s", indent, in.channel, in.pkg)
		}
	case len(similar) > 0:
		fmt.Fprintf(&b, "Command '%s' not found in the environment, perhaps you meant one of:\n", exe)
		for _, c := range distinctCandidates(similar) {
			fmt.Fprintf(&b, "\n%s'%s' from package %s ($ conda install -c %s %s)",
				indent, c.command, c.pkg, c.channel, c.pkg)
		}
	default:
		fmt.Fprintf(&b, "Command '%s' not found in the environment or in any known package.", exe)
	}
	return b.String()
}

func distinctInstalls(results []lookup.Result) []install {
	out := make([]install, 0, len(results))
	for _, r := range results {
		out = append(out, install{channel: r.Channel, pkg: r.Package})
	}
	slices.SortFunc(out, func(a, b install) int {
		if c := strings.Compare(a.channel, b.channel); c != 0 {
			return c
		}
		return strings.Compare(a.pkg, b.pkg)
	})
	return slices.Compact(out)
}

func distinctCandidates(results []lookup.Result) []candidate {
	out := make([]candidate, 0, len(results))
	for _, r := range results {
		out = append(out, candidate{channel: r.Channel, command: r.Executable, pkg: r.Package})
	}
	slices.SortFunc(out, func(a, b candidate) int {
		if c := strings.Compare(a.channel, b.channel); c != 0 {
			return c
		}
		if c := strings.Compare(a.command, b.command); c != 0 {
			return c
		}
		return strings.Compare(a.pkg, b.pkg)
	})
	return slices.Compact(out)
}

// Formatter runs the lookups behind a message.
type Formatter struct {
	engine *lookup.Engine
	logger *slog.Logger
}

func NewFormatter(engine *lookup.Engine) *Formatter {
	return &Formatter{
		engine: engine,
		logger: slog.Default().With("component", "message-formatter"),
	}
}

// Message looks exe up exactly and, only when that finds nothing, by
// substring, then composes the suggestion.
func (f *Formatter) Message(ctx context.Context, exe string, searchPath []string) (string, error) {
	exact, err := f.engine.ExactFind(ctx, exe, searchPath)
	if err != nil {
		return "", fmt.Errorf("exact lookup of %q: %w", exe, err)
	}
	var similar []lookup.Result
	if len(exact) == 0 {
		similar, err = f.engine.SubstringFind(ctx, exe, searchPath, nil)
		if err != nil {
			return "", fmt.Errorf("substring lookup of %q: %w", exe, err)
		}
	}
	f.logger.Debug("message composed",
		"exe", exe,
		"exact", len(exact),
		"similar", len(similar),
	)
	return Compose(exe, exact, similar), nil
}

// Write writes the message for exe followed by a single newline.
func (f *Formatter) Write(ctx context.Context, w io.Writer, exe string, searchPath []string) error {
	msg, err := f.Message(ctx, exe, searchPath)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, msg+"\n"); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}
