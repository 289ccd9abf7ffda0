package catalogue

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPathSegment is the path prefix under which the catalogue lives.
const DefaultPathSegment = "catalogue/"

// Resolver turns the relative links found on catalogue pages into absolute
// URLs. Item and next-page links come in two shapes on the same site: some
// already carry the catalogue segment, some are bare file names relative to
// it. Both shapes of the same link resolve to the same absolute URL.
type Resolver struct {
	base    *url.URL
	segment string
}

// NewResolver parses baseURL and returns a Resolver rooted there.
func NewResolver(baseURL, segment string) (Resolver, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return Resolver{}, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return Resolver{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	segment = strings.Trim(segment, "/")
	if segment == "" {
		segment = strings.TrimSuffix(DefaultPathSegment, "/")
	}
	return Resolver{base: base, segment: segment + "/"}, nil
}

// Base returns the site root as a string.
func (r Resolver) Base() string {
	return r.base.String()
}

// ItemURL resolves an item card href. An href without the catalogue segment
// is taken to be relative to the catalogue; one with it, relative to the site
// root.
func (r Resolver) ItemURL(href string) (string, error) {
	ref, err := parseRef(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if !strings.Contains(ref.Path, r.segment) {
		ref.Path = r.segment + ref.Path
	}
	return r.base.ResolveReference(ref).String(), nil
}

// NextURL resolves a next-page href found on current. Inside the catalogue the
// link names a sibling of the current page; at the site root it is relative
// to the root.
func (r Resolver) NextURL(current, href string) (string, error) {
	ref, err := parseRef(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	cur, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse current url: %w", err)
	}
	if r.InCatalogue(cur) {
		return cur.ResolveReference(ref).String(), nil
	}
	return r.base.ResolveReference(ref).String(), nil
}

// InCatalogue reports whether u sits below the catalogue segment.
func (r Resolver) InCatalogue(u *url.URL) bool {
	return strings.Contains(u.Path, "/"+r.segment)
}

func parseRef(href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, fmt.Errorf("empty href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	return ref, nil
}
