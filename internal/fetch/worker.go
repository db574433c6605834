package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"zupgo/internal/gate"
	"zupgo/internal/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Options struct {
	// Timeout bounds one whole request including the body read.
	// Default: 30s
	Timeout time.Duration

	// MaxBytes caps the body size of a single resource.
	// Default: 64 MiB
	MaxBytes int64

	UserAgent string
}

func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		MaxBytes:  64 << 20,
		UserAgent: userAgent,
	}
}

// Worker performs single URL to file transfers under a shared gate.
type Worker struct {
	gate   *gate.Gate
	client *http.Client
	opts   Options
}

func New(g *gate.Gate, opts Options) *Worker {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.MaxIdleConnsPerHost = g.Capacity()

	return &Worker{
		gate:   g,
		client: &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:   opts,
	}
}

// Fetch runs one job to a terminal outcome. An existing destination file
// is authoritative: it is reported as skipped and never rewritten.
func (w *Worker) Fetch(ctx context.Context, job models.DownloadJob) models.Outcome {
	_, err := os.Stat(job.DestPath)
	if err == nil {
		slog.Debug("Destination exists, skipping", "index", job.Index, "path", job.DestPath)
		return models.Skipped(job)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return models.Failed(job, models.KindWrite, err.Error())
	}

	n, err := w.fetch(ctx, job)
	if err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			fe = &Error{Kind: models.KindNetwork, URL: job.SourceURL, Err: err}
		}
		slog.Warn("Fetch failed", "index", job.Index, "url", job.SourceURL, "kind", fe.Kind, "error", fe.Err)
		return models.Failed(job, fe.Kind, fe.Reason())
	}

	out := models.Succeeded(job)
	out.Bytes = n
	return out
}

func (w *Worker) fetch(ctx context.Context, job models.DownloadJob) (int64, error) {
	if err := validateURL(job.SourceURL); err != nil {
		return 0, &Error{Kind: models.KindNetwork, URL: job.SourceURL, Err: err}
	}

	permit, err := w.gate.Acquire(ctx)
	if err != nil {
		return 0, &Error{Kind: models.KindTaskFault, URL: job.SourceURL, Err: fmt.Errorf("acquire slot: %w", err)}
	}
	defer permit.Release()

	body, err := w.get(ctx, job.SourceURL)
	if err != nil {
		return 0, err
	}

	if err := writeFile(job.DestPath, body); err != nil {
		return 0, &Error{Kind: models.KindWrite, URL: job.SourceURL, Err: err}
	}
	return int64(len(body)), nil
}

func (w *Worker) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: models.KindNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", w.opts.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: models.KindNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind: models.KindStatus,
			URL:  rawURL,
			Err:  &StatusError{Code: resp.StatusCode, Status: resp.Status},
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.opts.MaxBytes+1))
	if err != nil {
		return nil, &Error{Kind: models.KindNetwork, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > w.opts.MaxBytes {
		return nil, &Error{Kind: models.KindNetwork, URL: rawURL, Err: ErrTooLarge}
	}
	if len(body) == 0 {
		return nil, &Error{Kind: models.KindEmptyContent, URL: rawURL, Err: ErrEmptyContent}
	}
	return body, nil
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

// writeFile writes to a sibling .part file and renames it into place so
// that a crash never leaves a truncated file under the final name.
func writeFile(dest string, data []byte) error {
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
