package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Path",
			want: "https://example.com/Path",
		},
		{
			name: "removes default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "removes default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "strips fragment",
			in:   "https://example.com/a#section-2",
			want: "https://example.com/a",
		},
		{
			name: "strips tracking parameters and keeps the rest sorted",
			in:   "https://example.com/a?utm_source=x&b=2&a=1&gclid=abc",
			want: "https://example.com/a?a=1&b=2",
		},
		{
			name: "drops bare trailing slash",
			in:   "https://example.com/",
			want: "https://example.com",
		},
		{
			name: "keeps deeper trailing slash",
			in:   "https://example.com/docs/",
			want: "https://example.com/docs/",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURL_IdenticalEntries(t *testing.T) {
	t.Parallel()

	a, err := NormalizeURL("https://Example.com/page?utm_campaign=spring&id=7#top")
	require.NoError(t, err)
	b, err := NormalizeURL("https://example.com:443/page?id=7")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalizeURL_RejectsNonHTTP(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("mailto:someone@example.com")
	require.Error(t, err)
	_, err = NormalizeURL("ftp://example.com/file")
	require.Error(t, err)
}
