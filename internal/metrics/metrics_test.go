package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://books.toscrape.com/catalogue/page-2.html", "books.toscrape.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := detailsTotal
	Init()
	if detailsTotal != first {
		t.Fatal("Init() replaced collectors on second call")
	}
}

func TestObserveDetail(t *testing.T) {
	Init()
	before := testutil.ToFloat64(detailsTotal.WithLabelValues(DetailParseFailed))
	ObserveDetail(DetailParseFailed)
	if got := testutil.ToFloat64(detailsTotal.WithLabelValues(DetailParseFailed)); got != before+1 {
		t.Errorf("expected parse_failed to grow by 1, got %f -> %f", before, got)
	}
}

func TestObserveFetchAndPage(t *testing.T) {
	Init()
	beforeErr := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics.test", "error"))
	beforeRecords := testutil.ToFloat64(recordsTotal)
	ObserveFetch("http://metrics.test/x", false, 0, 10*time.Millisecond)
	ObservePage(true, 20, 1)

	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics.test", "error")); got != beforeErr+1 {
		t.Errorf("expected one failed fetch, got %f", got-beforeErr)
	}
	if got := testutil.ToFloat64(recordsTotal); got != beforeRecords+20 {
		t.Errorf("expected 20 records, got %f", got-beforeRecords)
	}
}

func TestInFlightGauge(t *testing.T) {
	Init()
	before := testutil.ToFloat64(detailInFlight)
	IncDetailInFlight()
	IncDetailInFlight()
	DecDetailInFlight()
	if got := testutil.ToFloat64(detailInFlight); got != before+1 {
		t.Errorf("expected gauge delta 1, got %f", got-before)
	}
	DecDetailInFlight()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://books.toscrape.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
