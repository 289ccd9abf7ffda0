package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolverRejectsRelativeBase(t *testing.T) {
	t.Parallel()

	_, err := NewResolver("books.toscrape.com", DefaultPathSegment)
	require.Error(t, err)
}

func TestNewResolverAddsTrailingSlash(t *testing.T) {
	t.Parallel()

	r, err := NewResolver("http://books.toscrape.com", "")
	require.NoError(t, err)
	assert.Equal(t, "http://books.toscrape.com/", r.Base())
}

func TestItemURLBothShapesAgree(t *testing.T) {
	t.Parallel()

	r := mustResolver(t, "http://books.toscrape.com/")
	withSegment, err := r.ItemURL("catalogue/sharp-objects_997/index.html")
	require.NoError(t, err)
	bare, err := r.ItemURL("sharp-objects_997/index.html")
	require.NoError(t, err)

	assert.Equal(t, "http://books.toscrape.com/catalogue/sharp-objects_997/index.html", withSegment)
	assert.Equal(t, withSegment, bare)
}

func TestItemURL(t *testing.T) {
	t.Parallel()

	r := mustResolver(t, "http://books.toscrape.com/")
	tests := []struct {
		name string
		href string
		want string
	}{
		{"absolute passes through", "https://other.example/x.html", "https://other.example/x.html"},
		{"surrounding whitespace", "  soumission_998/index.html ", "http://books.toscrape.com/catalogue/soumission_998/index.html"},
		{"dot segments cleaned", "catalogue/../catalogue/x_1/index.html", "http://books.toscrape.com/catalogue/x_1/index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.ItemURL(tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.ItemURL("")
	assert.Error(t, err)
}

func TestNextURL(t *testing.T) {
	t.Parallel()

	r := mustResolver(t, "http://books.toscrape.com/")
	tests := []struct {
		name    string
		current string
		href    string
		want    string
	}{
		{
			name:    "from site root",
			current: "http://books.toscrape.com/",
			href:    "catalogue/page-2.html",
			want:    "http://books.toscrape.com/catalogue/page-2.html",
		},
		{
			name:    "sibling inside catalogue",
			current: "http://books.toscrape.com/catalogue/page-2.html",
			href:    "page-3.html",
			want:    "http://books.toscrape.com/catalogue/page-3.html",
		},
		{
			name:    "absolute href",
			current: "http://books.toscrape.com/catalogue/page-2.html",
			href:    "http://books.toscrape.com/catalogue/page-9.html",
			want:    "http://books.toscrape.com/catalogue/page-9.html",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.NextURL(tt.current, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
