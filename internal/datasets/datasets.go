// Package datasets prefetches the PhysioNet EEG Motor Movement/Imagery recordings
// into the MNE cache layout read by the example scripts.
package datasets

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/metrics"
	"github.com/eegrasp/graspci/internal/retry"
	"github.com/eegrasp/graspci/internal/runlog"
	"github.com/eegrasp/graspci/internal/version"
)

// cacheDir is the MNE layout below the configured dataset directory.
const cacheDir = "MNE-eegbci-data/files/eegmmidb/1.0.0"

// File is one EDF recording of a subject's run.
type File struct {
	Subject int
	Run     int
	Path    string
	URL     string
}

// Name returns the recording file name, e.g. S001R04.edf.
func Name(subject, run int) string {
	return fmt.Sprintf("S%03dR%02d.edf", subject, run)
}

// Report summarises a fetch.
type Report struct {
	Downloaded []File
	Cached     []File
	Bytes      int64
	Duration   time.Duration
}

// Fetcher downloads the configured subjects and runs.
type Fetcher struct {
	cfg      config.DatasetsConfig
	dir      string
	client   *http.Client
	policy   retry.Policy
	recorder metrics.Recorder
	observer runlog.Observer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRecorder records retries.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *Fetcher) { f.recorder = r }
}

// WithObserver reports one step per downloaded file.
func WithObserver(o runlog.Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

// NewFetcher creates a Fetcher storing files under dir (normally cfg.Dir resolved against the project root).
func NewFetcher(cfg config.DatasetsConfig, dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:      cfg,
		dir:      dir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		policy:   retry.FromConfig(cfg.Retry),
		recorder: metrics.NoopRecorder{},
		observer: runlog.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Plan lists the expected files in subject, run order.
func (f *Fetcher) Plan() []File {
	base := strings.TrimSuffix(f.cfg.BaseURL, "/")
	files := make([]File, 0, len(f.cfg.Subjects)*len(f.cfg.Runs))
	for _, s := range f.cfg.Subjects {
		subjectDir := fmt.Sprintf("S%03d", s)
		for _, r := range f.cfg.Runs {
			name := Name(s, r)
			files = append(files, File{
				Subject: s,
				Run:     r,
				Path:    filepath.Join(f.dir, filepath.FromSlash(cacheDir), subjectDir, name),
				URL:     base + "/" + subjectDir + "/" + name,
			})
		}
	}
	return files
}

// Fetch downloads missing files. With the cache enabled and every file present nothing is fetched;
// with the cache disabled existing files are removed first.
func (f *Fetcher) Fetch(ctx context.Context) (*Report, error) {
	start := time.Now()
	files := f.Plan()
	report := &Report{}

	for _, file := range files {
		if file.Subject < 1 || file.Subject > config.MaxSubject {
			return nil, errors.ValidationError("subject out of range").
				WithContext("subject", file.Subject).
				Build()
		}
	}

	if !f.cfg.CacheEnabled() {
		for _, file := range files {
			if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
				return nil, errors.FileSystemError("failed to remove cached recording").
					WithCause(err).
					WithContext("path", file.Path).
					Build()
			}
		}
	}

	for _, file := range files {
		if exists(file.Path) {
			report.Cached = append(report.Cached, file)
			continue
		}
		stepStart := time.Now()
		n, err := f.download(ctx, file)
		f.observer.StepCompleted("download "+Name(file.Subject, file.Run), time.Since(stepStart), err)
		if err != nil {
			return report, err
		}
		report.Downloaded = append(report.Downloaded, file)
		report.Bytes += n
	}

	report.Duration = time.Since(start)
	if len(report.Downloaded) == 0 {
		slog.Info("Using cached EEGBCI data", slog.Int("files", len(report.Cached)))
	} else {
		slog.Info("Downloaded EEGBCI data",
			slog.Int("files", len(report.Downloaded)),
			slog.Int64("bytes", report.Bytes),
			logfields.Duration(report.Duration))
	}
	return report, nil
}

func (f *Fetcher) download(ctx context.Context, file File) (int64, error) {
	var written int64
	err := f.policy.Do(ctx, retry.Hooks{
		OnRetry: func(n int, delay time.Duration, err error) {
			f.recorder.IncDownloadRetry()
			slog.Warn("Retrying download",
				logfields.URL(file.URL),
				slog.Int("retry", n),
				logfields.Duration(delay),
				logfields.Error(err))
		},
	}, func(int) error {
		n, err := f.downloadOnce(ctx, file)
		written = n
		return err
	})
	return written, err
}

func (f *Fetcher) downloadOnce(ctx context.Context, file File) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, http.NoBody)
	if err != nil {
		return 0, errors.ValidationError("invalid dataset URL").WithCause(err).WithContext("url", file.URL).Build()
	}
	req.Header.Set("User-Agent", "graspci/"+version.Version)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errors.NetworkError("dataset download failed").WithCause(err).WithContext("url", file.URL).Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b := errors.NewError(errors.CategoryNetwork, "unexpected dataset response").
			WithContext("url", file.URL).
			WithContext("code", resp.StatusCode)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			b = errors.NewError(errors.CategoryNotFound, "dataset file not found").WithContext("url", file.URL)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			b = b.Retryable()
		}
		return 0, b.Build()
	}

	if err := os.MkdirAll(filepath.Dir(file.Path), 0o750); err != nil {
		return 0, errors.FileSystemError("failed to create dataset directory").WithCause(err).WithContext("path", file.Path).Build()
	}
	tmp, err := os.CreateTemp(filepath.Dir(file.Path), "."+filepath.Base(file.Path)+".*.part")
	if err != nil {
		return 0, errors.FileSystemError("failed to create temporary file").WithCause(err).WithContext("path", file.Path).Build()
	}
	tmpName := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpName)
		}
	}()

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		if stderrors.Is(copyErr, context.Canceled) || stderrors.Is(copyErr, context.DeadlineExceeded) {
			return 0, copyErr
		}
		return 0, errors.NetworkError("dataset download interrupted").WithCause(copyErr).WithContext("url", file.URL).Build()
	}
	if closeErr != nil {
		return 0, errors.FileSystemError("failed to write dataset file").WithCause(closeErr).WithContext("path", tmpName).Build()
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return 0, errors.NetworkError("dataset download truncated").
			WithContext("url", file.URL).
			WithContext("expected", resp.ContentLength).
			WithContext("got", n).
			Build()
	}
	if err := os.Rename(tmpName, file.Path); err != nil {
		return 0, errors.FileSystemError("failed to move dataset file into place").WithCause(err).WithContext("path", file.Path).Build()
	}
	keep = true
	slog.Debug("Downloaded recording", logfields.Path(file.Path), slog.Int64("bytes", n))
	return n, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
