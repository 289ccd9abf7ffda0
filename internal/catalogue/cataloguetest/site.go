// Package cataloguetest builds fixture catalogue pages and serves them over
// httptest for package tests.
package cataloguetest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Card describes one item card on a fixture listing page.
type Card struct {
	Title        string
	Price        string
	Availability string
	Href         string
	// OmitTitle drops the title attribute to produce a malformed card.
	OmitTitle bool
}

// ListingPage renders a listing page with the given cards. An empty nextHref
// renders no pager.
func ListingPage(cards []Card, nextHref string) string {
	var b strings.Builder
	b.WriteString("<html><body><section><ol class=\"row\">\n")
	for _, c := range cards {
		title := fmt.Sprintf(` title="%s"`, html.EscapeString(c.Title))
		if c.OmitTitle {
			title = ""
		}
		fmt.Fprintf(&b, `<li><article class="product_pod">
  <h3><a href="%s"%s>%s</a></h3>
  <div class="product_price">
    <p class="price_color">%s</p>
    <p class="instock availability">
      <i class="icon-ok"></i>
        %s
    </p>
  </div>
</article></li>
`, html.EscapeString(c.Href), title, html.EscapeString(c.Title), html.EscapeString(c.Price), html.EscapeString(c.Availability))
	}
	b.WriteString("</ol>\n")
	if nextHref != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="current">Page</li><li class="next"><a href="%s">next</a></li></ul>`, html.EscapeString(nextHref))
	}
	b.WriteString("</section></body></html>")
	return b.String()
}

// Detail describes a fixture detail page. Empty strings omit the element.
type Detail struct {
	Description string
	Crumbs      []string
	UPC         string
	// HeadingOnly renders the description heading without its paragraph.
	HeadingOnly bool
}

// DetailPage renders a detail page.
func DetailPage(d Detail) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	if len(d.Crumbs) > 0 {
		b.WriteString(`<ul class="breadcrumb">`)
		for _, c := range d.Crumbs {
			fmt.Fprintf(&b, "<li>\n  <a href=\"#\">%s</a>\n</li>", html.EscapeString(c))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString(`<article class="product_page">`)
	if d.Description != "" || d.HeadingOnly {
		b.WriteString(`<div id="product_description" class="sub-header"><h2>Product Description</h2></div>`)
		if !d.HeadingOnly {
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(d.Description))
		}
	}
	if d.UPC != "" {
		fmt.Fprintf(&b, `<table class="table table-striped"><tr><th>UPC</th><td>%s</td></tr></table>`, html.EscapeString(d.UPC))
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

// DefaultCrumbs is a breadcrumb trail whose third entry is category.
func DefaultCrumbs(category string) []string {
	return []string{"Home", "Books", category, "Item"}
}

// Site is an httptest server serving fixed pages by path.
type Site struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]string
	statuses map[string]int
	hits     map[string]int
}

// NewSite starts a Site and registers its shutdown with t.
func NewSite(t testing.TB) *Site {
	t.Helper()
	s := &Site{
		pages:    make(map[string]string),
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Page registers body under path.
func (s *Site) Page(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

// Status forces path to answer with code.
func (s *Site) Status(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[path] = code
}

// Hits returns how often path was requested.
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// URL returns the absolute URL for path.
func (s *Site) URL(path string) string {
	return s.Server.URL + path
}

// Root returns the site root with a trailing slash.
func (s *Site) Root() string {
	return s.Server.URL + "/"
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	code, forced := s.statuses[r.URL.Path]
	body, ok := s.pages[r.URL.Path]
	s.mu.Unlock()

	if forced {
		http.Error(w, http.StatusText(code), code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
