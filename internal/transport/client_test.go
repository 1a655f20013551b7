package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/errs"
)

func testSettings() config.TransportSettings {
	return config.TransportSettings{
		MinRequestDelay:    0,
		ConnectionTimeout:  2 * time.Second,
		FailedRequestDelay: 5 * time.Millisecond,
		MaxRequestRetries:  2,
		UserAgent:          "lensvault-test/1.0",
	}
}

func TestFetchReturnsBodyAndSetsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testSettings())
	body, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, "lensvault-test/1.0", gotUA.Load())
}

func TestNotFoundIsNotRetriedByDefault(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(testSettings())
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.True(t, errs.IsNotFound(err))
	require.Equal(t, int64(1), hits.Load())
}

func TestServerErrorIsRetriedUpToBudget(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testSettings()
	cfg.MaxRequestRetries = 2
	c := New(cfg)
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.Equal(t, errs.CodeHTTPStatus, errs.CodeOf(err))
	// maxRequestRetries + 1 total attempts.
	require.Equal(t, int64(3), hits.Load())
}

func TestRetriesFormFailureChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testSettings()
	cfg.MaxRequestRetries = 1
	c := New(cfg)
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var failure *errs.E
	require.ErrorAs(t, err, &failure)
	require.Len(t, failure.Chain(), 2)
}

func TestTimeoutYieldsTimeoutFailure(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := testSettings()
	cfg.ConnectionTimeout = 50 * time.Millisecond
	cfg.MaxRequestRetries = 0
	c := New(cfg)
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.True(t, errs.IsTimeout(err), "got %v", err)
}

func TestInvalidURLFailsWithoutRequest(t *testing.T) {
	c := New(testSettings())
	for _, raw := range []string{"", "::bad::", "relative/path", "ftp://example.com/x"} {
		_, err := c.Fetch(context.Background(), raw, nil)
		require.Error(t, err, "url %q", raw)
		require.Equal(t, errs.CodeInvalidURL, errs.CodeOf(err), "url %q", raw)
	}
}

func TestRetryableOverride(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testSettings()
	cfg.MaxRequestRetries = 1
	c := New(cfg)
	_, err := c.Fetch(context.Background(), srv.URL, &Options{
		RetryNotFound: true,
	})
	require.Error(t, err)
	require.Equal(t, int64(2), hits.Load())

	hits.Store(0)
	_, err = c.Fetch(context.Background(), srv.URL, &Options{
		Retryable: func(errs.Code) bool { return false },
	})
	require.Error(t, err)
	require.Equal(t, int64(1), hits.Load())
}

func TestConcurrentFetchesAreHostPaced(t *testing.T) {
	const minDelay = 200 * time.Millisecond

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testSettings()
	cfg.MinRequestDelay = minDelay
	c := New(cfg)

	fetchErrs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), srv.URL, nil)
			fetchErrs <- err
		}()
	}
	wg.Wait()
	close(fetchErrs)
	for err := range fetchErrs {
		require.NoError(t, err)
	}

	require.Len(t, starts, 2)
	gap := starts[1].Sub(starts[0])
	if gap < 0 {
		gap = -gap
	}
	require.GreaterOrEqual(t, gap, minDelay-20*time.Millisecond, "requests started %s apart", gap)
}

func TestResetClearsPacingState(t *testing.T) {
	cfg := testSettings()
	cfg.MinRequestDelay = time.Hour
	c := New(cfg)

	require.NoError(t, c.pace(context.Background(), "example.com"))
	c.Reset()
	// A fresh limiter grants its first slot immediately.
	require.NoError(t, c.pace(context.Background(), "example.com"))
}
