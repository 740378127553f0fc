package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/shared/testutil"
)

func testFetchConfig(url string) config.DatasetConfig {
	return config.DatasetConfig{
		URL:            url,
		FetchTimeout:   5 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RateLimitRPS:   1000,
		UserAgent:      "covidcli-test",
	}
}

func newTestFetcher(t *testing.T, url string) (*Fetcher, *config.Paths) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	paths := config.PathsAt(t.TempDir())
	return NewFetcher(testFetchConfig(url), paths, logger, nil), paths
}

func TestFetcher_Fetch_DownloadsAndWritesManifest(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")
	csv := fixtures.SampleCSV()

	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	fetcher, paths := newTestFetcher(t, srv.URL)

	res, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Unchanged)
	assert.Equal(t, paths.RawDatasetCSV, res.Path)
	assert.Equal(t, int64(len(csv)), res.Bytes)
	assert.Equal(t, "covidcli-test", gotUserAgent)

	data, err := os.ReadFile(paths.RawDatasetCSV)
	require.NoError(t, err)
	assert.Equal(t, csv, string(data))

	manifest, err := ReadManifest(paths.FetchManifestJSON)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, manifest.Source)
	assert.Len(t, manifest.Fingerprint, 64)
	assert.Equal(t, int64(len(csv)), manifest.SizeBytes)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", manifest.LastModified)
	assert.False(t, manifest.FetchedAt.IsZero())
}

func TestFetcher_Fetch_UnchangedByFingerprint(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")
	csv := fixtures.SampleCSV()

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	fetcher, paths := newTestFetcher(t, srv.URL)

	first, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, first.Unchanged)

	second, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.True(t, second.Unchanged)
	assert.Equal(t, first.Manifest.Fingerprint, second.Manifest.Fingerprint)
	assert.True(t, second.Manifest.FetchedAt.Equal(first.Manifest.FetchedAt),
		"an unchanged fetch keeps the original manifest")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	_, err = os.Stat(paths.RawDatasetCSV)
	assert.NoError(t, err, "the raw file stays in place")
}

func TestFetcher_Fetch_NotModifiedShortCircuit(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")
	csv := fixtures.SampleCSV()
	lastMod := "Mon, 02 Jan 2006 15:04:05 GMT"

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("If-Modified-Since") == lastMod {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", lastMod)
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL)

	first, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, first.Unchanged)

	second, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.True(t, second.Unchanged)
	assert.Equal(t, int64(0), second.Bytes, "not modified means no body transferred")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestFetcher_Fetch_RetriesServerErrors(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")
	csv := fixtures.SampleCSV()

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL)

	res, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Unchanged)
	assert.Equal(t, int64(len(csv)), res.Bytes)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestFetcher_Fetch_NoRetryOnClientError(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL)

	_, err := fetcher.Fetch(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNetwork, appErr.Type)
	assert.Equal(t, http.StatusNotFound, appErr.Context["status_code"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "client errors are not retried")
}

func TestFetcher_Fetch_FailsAfterAllRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL)

	_, err := fetcher.Fetch(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNetwork, appErr.Type)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestFetcher_Fetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unreached"))
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx)
	require.Error(t, err)
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(t.TempDir() + "/manifest.json")
	require.ErrorIs(t, err, apperrors.ErrDatasetMissing)
}
