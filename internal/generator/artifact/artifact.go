// Package artifact lists the executables a conda package installs, read
// from the metadata inside .tar.bz2 and .conda archives.
package artifact

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

const (
	ExtTarBz2 = ".tar.bz2"
	ExtConda  = ".conda"

	filesMember = "info/files"
	linkMember  = "info/link.json"
)

// ExecutableRE picks the executable name out of an info/files line. Only
// the start is anchored, so nested paths yield their first directory.
var ExecutableRE = regexp.MustCompile(`^(?:bin|Scripts)/([^/]*)`)

// Supported reports whether the archive format of name can be read.
func Supported(name string) bool {
	return strings.HasSuffix(name, ExtTarBz2) || strings.HasSuffix(name, ExtConda)
}

// Executables returns the sorted, distinct executables of the archive named
// name, whose bytes r holds.
func Executables(name string, r io.ReaderAt, size int64) ([]string, error) {
	var (
		meta *metadata
		err  error
	)
	switch {
	case strings.HasSuffix(name, ExtTarBz2):
		meta, err = scanTar(bzip2.NewReader(io.NewSectionReader(r, 0, size)))
	case strings.HasSuffix(name, ExtConda):
		meta, err = scanConda(r, size)
	default:
		return nil, fmt.Errorf("%w: unsupported archive format %q", apperrors.ErrArtifact, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrArtifact, name, err)
	}
	if meta.files == nil {
		return nil, fmt.Errorf("%w: %s: no %s member", apperrors.ErrArtifact, name, filesMember)
	}
	return meta.executables()
}

type metadata struct {
	files []byte
	link  []byte
}

func (m *metadata) executables() ([]string, error) {
	var exes []string
	sc := bufio.NewScanner(bytes.NewReader(m.files))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if match := ExecutableRE.FindStringSubmatch(line); match != nil && match[1] != "" {
			exes = append(exes, match[1])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filesMember, err)
	}
	if m.link != nil {
		points, err := entryPoints(m.link)
		if err != nil {
			return nil, err
		}
		exes = append(exes, points...)
	}
	slices.Sort(exes)
	return slices.Compact(exes), nil
}

type linkJSON struct {
	Noarch *struct {
		EntryPoints []string `json:"entry_points"`
	} `json:"noarch"`
}

// entryPoints returns the command names of noarch python entry points,
// declared as "name = module:function".
func entryPoints(data []byte) ([]string, error) {
	var link linkJSON
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", linkMember, err)
	}
	if link.Noarch == nil {
		return nil, nil
	}
	names := make([]string, 0, len(link.Noarch.EntryPoints))
	for _, point := range link.Noarch.EntryPoints {
		name, _, _ := strings.Cut(point, "=")
		names = append(names, strings.TrimSpace(name))
	}
	return names, nil
}

// scanTar streams a tar archive and keeps the metadata members.
func scanTar(r io.Reader) (*metadata, error) {
	meta := &metadata{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return meta, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		var dst *[]byte
		switch strings.TrimPrefix(hdr.Name, "./") {
		case filesMember:
			dst = &meta.files
		case linkMember:
			dst = &meta.link
		default:
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		if data == nil {
			data = []byte{}
		}
		*dst = data
	}
}

// scanConda opens the zstd-compressed info tarball of a .conda archive.
func scanConda(r io.ReaderAt, size int64) (*metadata, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "info-") || !strings.HasSuffix(f.Name, ".tar.zst") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()
		dec, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream %s: %w", f.Name, err)
		}
		defer dec.Close()
		return scanTar(dec)
	}
	return nil, errors.New("no info-*.tar.zst member")
}
