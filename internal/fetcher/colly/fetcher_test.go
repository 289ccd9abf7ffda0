package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue/cataloguetest"
)

func TestFetchParsesDocument(t *testing.T) {
	t.Parallel()

	site := cataloguetest.NewSite(t)
	site.Page("/index.html", cataloguetest.ListingPage([]cataloguetest.Card{
		{Title: "One", Price: "£1.00", Availability: "In stock", Href: "one_1/index.html"},
	}, "catalogue/page-2.html"))

	f := New(Config{UserAgent: "test-agent", Timeout: time.Second}, zap.NewNop())
	doc, err := f.Fetch(context.Background(), site.URL("/index.html"))
	require.NoError(t, err)
	require.NotNil(t, doc.Url)
	assert.Equal(t, site.URL("/index.html"), doc.Url.String())
	assert.Equal(t, 1, doc.Find("article.product_pod").Length())
}

func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.UserAgent()
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "Mozilla/5.0 test", Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0 test", <-seen)
}

func TestFetchAllowsRevisit(t *testing.T) {
	t.Parallel()

	site := cataloguetest.NewSite(t)
	site.Page("/", "<html><body>root</body></html>")

	f := New(Config{Timeout: time.Second}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), site.Root())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, site.Hits("/"))
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	t.Parallel()

	site := cataloguetest.NewSite(t)
	site.Status("/gone.html", http.StatusNotFound)

	core, logs := observer.New(zap.ErrorLevel)
	f := New(Config{Timeout: time.Second}, zap.New(core))
	doc, err := f.Fetch(context.Background(), site.URL("/gone.html"))
	require.Nil(t, doc)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr), "expected *FetchError, got %T", err)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, site.URL("/gone.html"), fetchErr.URL)

	entries := logs.FilterMessage("Failed to fetch page").All()
	require.Len(t, entries, 1)
	assert.Equal(t, site.URL("/gone.html"), entries[0].ContextMap()["url"])
}

func TestFetchEmptyBodyIsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, errEmptyBody)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchUnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), addr)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	site := cataloguetest.NewSite(t)
	site.Page("/", "<html></html>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(ctx, site.Root())
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	var result page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result, &fetchErr)
	if hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/final"),
		},
	})
	assert.Equal(t, http.StatusOK, result.statusCode)
	assert.Equal(t, "body", string(result.body))
	assert.Equal(t, "https://example.com/final", result.finalURL.String())

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, result.statusCode)
	require.EqualError(t, fetchErr, "boom")

	hooks.onError(nil, nil)
	require.EqualError(t, fetchErr, "unknown colly error")
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "ua"}, nil)
	assert.Equal(t, defaultTimeout, f.cfg.Timeout)
	assert.Equal(t, "ua", f.baseCollector.UserAgent)
	assert.True(t, f.baseCollector.AllowURLRevisit)
}

func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	err := &FetchError{URL: "http://x", StatusCode: 500, Cause: errors.New("Internal Server Error")}
	assert.Equal(t, "fetch http://x: status 500: Internal Server Error", err.Error())
	err = &FetchError{URL: "http://x", Cause: errors.New("dial")}
	assert.Equal(t, "fetch http://x: dial", err.Error())
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
