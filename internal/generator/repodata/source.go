package repodata

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/resilience"
)

// Blob is a fetched file. Downloaded blobs live in a temp file that Close
// removes.
type Blob struct {
	*os.File
	temporary bool
}

// Size returns the blob length in bytes.
func (b *Blob) Size() (int64, error) {
	info, err := b.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *Blob) Close() error {
	err := b.File.Close()
	if b.temporary {
		os.Remove(b.Name())
	}
	return err
}

// Source hands out the files of one channel. A missing file yields an
// error matching fs.ErrNotExist.
type Source interface {
	Fetch(ctx context.Context, subdir, name string) (*Blob, error)
}

// NewSource returns an HTTP source for http(s) channels and a directory
// source for everything else.
func NewSource(channel string, timeout time.Duration) Source {
	if strings.HasPrefix(channel, "http://") || strings.HasPrefix(channel, "https://") {
		return NewHTTPSource(channel, &http.Client{Timeout: timeout})
	}
	return DirSource{Root: channel}
}

// DirSource reads a channel laid out on disk as <Root>/<subdir>/<name>.
type DirSource struct {
	Root string
}

func (d DirSource) Fetch(_ context.Context, subdir, name string) (*Blob, error) {
	f, err := os.Open(filepath.Join(d.Root, subdir, name))
	if err != nil {
		return nil, fmt.Errorf("opening %s/%s: %w", subdir, name, err)
	}
	return &Blob{File: f}, nil
}

// HTTPSource downloads from <BaseURL>/<subdir>/<name>, retrying transient
// failures.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	Retry   resilience.RetryConfig
	TempDir string
	logger  *slog.Logger
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
		Retry:   resilience.RetryConfig{MaxAttempts: 4, InitialDelay: 500 * time.Millisecond},
		logger:  slog.Default().With("component", "http-source"),
	}
}

func (h *HTTPSource) Fetch(ctx context.Context, subdir, name string) (*Blob, error) {
	url := h.BaseURL + "/" + subdir + "/" + name
	var blob *Blob
	err := resilience.Retry(ctx, "fetch "+url, h.Retry, func() error {
		b, err := h.download(ctx, url)
		if err != nil {
			return err
		}
		blob = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (h *HTTPSource) download(ctx context.Context, url string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err))
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resilience.Permanent(fmt.Errorf("fetching %s: %w", url, fs.ErrNotExist))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.Permanent(fmt.Errorf("fetching %s: status %d", url, resp.StatusCode))
	}

	f, err := os.CreateTemp(h.TempDir, "conda-suggest-*")
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("creating download file: %w", err))
	}
	blob := &Blob{File: f, temporary: true}
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		blob.Close()
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		blob.Close()
		return nil, resilience.Permanent(fmt.Errorf("rewinding download: %w", err))
	}
	h.logger.Debug("downloaded", "url", url, "bytes", n)
	return blob, nil
}
