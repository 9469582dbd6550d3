package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "campuscal/internal/log"
)

func TestMain(m *testing.M) {
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const pageBody = `<html><body><span class="ev">Classes Begin</span><span class="date">August 26, 2019, Monday</span></body></html>`

func TestFetchCachesAndRevalidates(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0)

	first, err := f.Fetch(context.Background(), srv.URL+"/academics/calendar/")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, pageBody, string(first.Body))

	second, err := f.Fetch(context.Background(), srv.URL+"/academics/calendar/")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, pageBody, string(second.Body))

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestFetchFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, page.FromCache)
	assert.Equal(t, pageBody, string(page.Body))
}

func TestFetchFailuresWrapErrFetch(t *testing.T) {
	t.Run("server error without cache", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewFetcher(t.TempDir(), 0).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("not modified without cache", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		}))
		defer srv.Close()

		_, err := NewFetcher(t.TempDir(), 0).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("unreachable host", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewFetcher(t.TempDir(), 0).Fetch(context.Background(), url)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := NewFetcher(t.TempDir(), 0).Fetch(context.Background(), "")
		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://www.example.edu/...(redacted)", redactURL("https://www.example.edu/academics/calendar/?token=x"))
	assert.Equal(t, "https://www.example.edu", redactURL("https://www.example.edu"))
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}
