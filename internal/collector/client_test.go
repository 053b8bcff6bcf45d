package collector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Options{
		ListTimeout:   2 * time.Second,
		DetailTimeout: 2 * time.Second,
		RelayTimeout:  2 * time.Second,
		RetryMax:      2,
		RetryWaitMin:  time.Millisecond,
		RetryWaitMax:  2 * time.Millisecond,
	})
}

func TestClientFetchSendsAgeGateCookie(t *testing.T) {
	var cookie, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		ua = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	resp, err := newTestClient().Fetch(context.Background(), srv.URL+"/bbs/Test/index.html", ModeList)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Contains(t, cookie, "over18=1")
	assert.Equal(t, DefaultUserAgent, ua)
}

func TestClientFetchNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), srv.URL+"/x", ModeDetail)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, ErrorKind(err))
	// 404 不重试
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestClientFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "recovered")
	}))
	defer srv.Close()

	resp, err := newTestClient().Fetch(context.Background(), srv.URL, ModeList)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(resp.Body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClientFetchGivesUpAfterRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), srv.URL, ModeList)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.True(t, fe.Transient())
	assert.Equal(t, KindUnavailable, ErrorKind(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClientFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), srv.URL, ModeList)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Equal(t, KindFailed, ErrorKind(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestClientFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient().Fetch(ctx, srv.URL, ModeList)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, ErrorKind(err))
}

func TestClientOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	c := newTestClient()
	resp, err := c.Open(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, body)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	_, err = c.Open(context.Background(), srv.URL+"/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(Options{RateLimit: 20, RateBurst: 1, RetryWaitMin: time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), srv.URL, ModeList)
		require.NoError(t, err)
	}
	// 20 次/秒、突发 1：第 2、3 次各需等待约 50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
