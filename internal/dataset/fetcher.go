package dataset

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/domain"
)

// FetchResult reports the outcome of one fetch.
type FetchResult struct {
	Manifest  domain.DatasetManifest
	Path      string
	Unchanged bool
	Bytes     int64
	Duration  time.Duration
}

// Fetcher downloads the dataset CSV and maintains the fetch manifest.
// Downloads stream to a temp file and are renamed into place only after
// the fingerprint check, so a failed fetch never clobbers the previous
// dataset.
type Fetcher struct {
	cfg     config.DatasetConfig
	paths   *config.Paths
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewFetcher creates a fetcher. metrics may be nil when the caller does
// not collect telemetry.
func NewFetcher(cfg config.DatasetConfig, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Fetcher{
		cfg:     cfg,
		paths:   paths,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch downloads the dataset. When upstream answers Not Modified, or
// the downloaded bytes hash to the fingerprint already recorded in the
// manifest, the existing file is kept and Unchanged is set.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	start := time.Now()
	res, err := f.fetch(ctx)
	duration := time.Since(start)

	var bytes int64
	unchanged := false
	if res != nil {
		res.Duration = duration
		bytes = res.Bytes
		unchanged = res.Unchanged
	}
	infrastructure.RecordDatasetFetch(ctx, f.metrics, bytes, duration, unchanged, err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		infrastructure.AddSpanEvent(ctx, "dataset.fetch_completed", map[string]interface{}{
			"bytes":     bytes,
			"unchanged": unchanged,
		})
	}
	return res, err
}

func (f *Fetcher) fetch(ctx context.Context) (*FetchResult, error) {
	for _, dir := range []string{f.paths.RawDir, f.paths.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("failed to create data directory", err).
				WithContext("directory", dir)
		}
	}

	prev, err := ReadManifest(f.paths.FetchManifestJSON)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDatasetMissing) {
			f.logger.WarnContext(ctx, "unreadable fetch manifest, refetching",
				slog.String("error", err.Error()))
		}
		prev = nil
	}

	attempts := f.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := f.cfg.RetryBaseDelay << uint(attempt-1)
			f.logger.WarnContext(ctx, "retrying dataset fetch",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, err := f.download(ctx, prev)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) download(ctx context.Context, prev *domain.DatasetManifest) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build dataset request", err).
			WithContext("url", f.cfg.URL)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/csv")
	if prev != nil && prev.LastModified != "" && config.FileExists(f.paths.RawDatasetCSV) {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("dataset download failed", err).
			WithContext("url", f.cfg.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		f.logger.InfoContext(ctx, "dataset not modified upstream",
			slog.String("last_modified", prev.LastModified))
		return &FetchResult{
			Manifest:  *prev,
			Path:      f.paths.RawDatasetCSV,
			Unchanged: true,
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewNetworkError("dataset download failed",
			&httpStatusError{status: resp.StatusCode}).
			WithContext("url", f.cfg.URL).
			WithContext("status_code", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.paths.CacheDir, "owid-download-*.csv")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create temp download file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher, err := blake2b.New256(nil)
	if err != nil {
		tmp.Close()
		return nil, apperrors.NewInternalAppError("failed to init fingerprint hasher", err)
	}

	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		tmp.Close()
		return nil, apperrors.NewNetworkError("dataset download interrupted", err).
			WithContext("url", f.cfg.URL).
			WithContext("bytes_received", written)
	}
	if err := tmp.Close(); err != nil {
		return nil, apperrors.NewStorageError("failed to flush temp download file", err)
	}

	fingerprint := hex.EncodeToString(hasher.Sum(nil))

	if prev != nil && prev.Fingerprint == fingerprint && config.FileExists(f.paths.RawDatasetCSV) {
		f.logger.InfoContext(ctx, "dataset unchanged upstream",
			slog.String("fingerprint", fingerprint),
			slog.Int64("size_bytes", written))
		return &FetchResult{
			Manifest:  *prev,
			Path:      f.paths.RawDatasetCSV,
			Unchanged: true,
			Bytes:     written,
		}, nil
	}

	if err := os.Rename(tmpPath, f.paths.RawDatasetCSV); err != nil {
		return nil, apperrors.NewStorageError("failed to move dataset into place", err).
			WithContext("file_path", f.paths.RawDatasetCSV)
	}

	manifest := domain.DatasetManifest{
		Source:       f.cfg.URL,
		FilePath:     f.paths.RawDatasetCSV,
		Fingerprint:  fingerprint,
		SizeBytes:    written,
		FetchedAt:    time.Now().UTC(),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if err := WriteManifest(f.paths.FetchManifestJSON, &manifest); err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "dataset downloaded",
		slog.String("url", f.cfg.URL),
		slog.Int64("size_bytes", written),
		slog.String("fingerprint", fingerprint))

	return &FetchResult{
		Manifest: manifest,
		Path:     f.paths.RawDatasetCSV,
		Bytes:    written,
	}, nil
}

// httpStatusError marks a non-2xx upstream response.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.status, http.StatusText(e.status))
}

// isRetryable reports whether another attempt could help. Client errors
// other than 429 will not change between attempts.
func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests
	}
	return true
}

// ReadManifest loads a fetch manifest from disk. A missing manifest
// reports ErrDatasetMissing.
func ReadManifest(path string) (*domain.DatasetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrDatasetMissing
		}
		return nil, apperrors.NewStorageError("failed to read fetch manifest", err).
			WithContext("file_path", path)
	}

	var m domain.DatasetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewParsingError("failed to decode fetch manifest", err).
			WithContext("file_path", path)
	}
	return &m, nil
}

// WriteManifest persists a fetch manifest.
func WriteManifest(path string, m *domain.DatasetManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperrors.NewInternalAppError("failed to encode fetch manifest", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write fetch manifest", err).
			WithContext("file_path", path)
	}
	return nil
}
