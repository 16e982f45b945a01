package feed_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/feed"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
)

func get(t *testing.T, h http.Handler, method, path string, header map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandler_ServingContent(t *testing.T) {
	srv := feed.NewServer("0")
	ics := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR")
	srv.Update(ics)

	resp := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeTextCalendar, resp.Header.Get(config.HeaderContentType))
	assert.Equal(t, config.MimeNoSniff, resp.Header.Get(config.HeaderXContentType))
	assert.Contains(t, resp.Header.Get(config.HeaderCacheControl), "no-cache")
	assert.NotEmpty(t, resp.Header.Get(config.HeaderETag))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, ics, body)

	root := get(t, srv.Handler(), http.MethodGet, config.RouteRoot, nil)
	assert.Equal(t, http.StatusOK, root.StatusCode)
}

func TestHandler_Head(t *testing.T) {
	srv := feed.NewServer("0")
	srv.Update([]byte("DATA"))

	resp := get(t, srv.Handler(), http.MethodHead, config.RouteCalendar, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
}

func TestHandler_ETagCaching(t *testing.T) {
	srv := feed.NewServer("0")
	srv.Update([]byte("DATA_VERSION_1"))

	first := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)
	etag := first.Header.Get(config.HeaderETag)
	require.NotEmpty(t, etag)

	second := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar,
		map[string]string{config.HeaderIfNoneMatch: etag})
	assert.Equal(t, http.StatusNotModified, second.StatusCode)
	body, _ := io.ReadAll(second.Body)
	assert.Empty(t, body, "304 carries no body")

	srv.Update([]byte("DATA_VERSION_2"))
	third := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar,
		map[string]string{config.HeaderIfNoneMatch: etag})
	assert.Equal(t, http.StatusOK, third.StatusCode)
	assert.NotEqual(t, etag, third.Header.Get(config.HeaderETag))
}

func TestHandler_IfModifiedSince(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := feed.NewServer("0", feed.WithNow(func() time.Time { return published }))
	srv.Update([]byte("DATA"))

	fresh := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar,
		map[string]string{config.HeaderIfModifiedSince: published.Format(http.TimeFormat)})
	assert.Equal(t, http.StatusNotModified, fresh.StatusCode)

	stale := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar,
		map[string]string{config.HeaderIfModifiedSince: published.Add(-time.Hour).Format(http.TimeFormat)})
	assert.Equal(t, http.StatusOK, stale.StatusCode)
}

func TestUpdate_SameContentKeepsLastModified(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := feed.NewServer("0", feed.WithNow(func() time.Time { return at }))
	srv.Update([]byte("DATA"))

	at = at.Add(time.Hour)
	srv.Update([]byte("DATA"))

	resp := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)
	assert.Equal(t, "Sun, 01 Mar 2026 12:00:00 GMT", resp.Header.Get(config.HeaderLastModified))
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := feed.NewServer("0")

	resp := get(t, srv.Handler(), http.MethodPost, config.RouteCalendar, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, config.AllowedMethods, resp.Header.Get(config.HeaderAllow))
}

func TestHandler_Initializing(t *testing.T) {
	srv := feed.NewServer("0")

	resp := get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, config.RetryAfterSeconds, resp.Header.Get(config.HeaderRetryAfter))
}

func TestHandler_MetricsEndpoint(t *testing.T) {
	c := metrics.NewCollector("")
	srv := feed.NewServer("0", feed.WithMetrics(c))

	get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)
	srv.Update([]byte("DATA"))
	get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)
	get(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)

	resp := get(t, srv.Handler(), http.MethodGet, config.RouteMetrics, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `lifegrid_feed_requests_total{code="OK"} 2`)
	assert.Contains(t, string(body), `lifegrid_feed_requests_total{code="Service Unavailable"} 1`)
}

func TestHandler_NoMetricsRoute(t *testing.T) {
	srv := feed.NewServer("0")
	resp := get(t, srv.Handler(), http.MethodGet, config.RouteMetrics, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Run with -race.
func TestServer_ConcurrentUpdates(t *testing.T) {
	srv := feed.NewServer("0")
	var wg sync.WaitGroup
	end := time.Now().Add(300 * time.Millisecond)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; time.Now().Before(end); i++ {
				srv.Update([]byte(fmt.Sprintf("VERSION:%d-%d", id, i)))
				time.Sleep(time.Microsecond)
			}
		}(w)
	}

	for r := 0; r < 16; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				w := httptest.NewRecorder()
				srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil))
				if w.Code != http.StatusOK && w.Code != http.StatusServiceUnavailable {
					t.Errorf("unexpected status %d", w.Code)
				}
			}
		}()
	}
	wg.Wait()
}

func TestServer_Lifecycle(t *testing.T) {
	const port = "18097"

	srv := feed.NewServer(port)
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	url := "http://127.0.0.1:" + port + config.RouteCalendar
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond, "server failed to listen in time")

	srv.Update([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server shutdown timed out")
	}
}

func TestServer_PortRequired(t *testing.T) {
	assert.Error(t, feed.NewServer("").Start(context.Background()))
}
