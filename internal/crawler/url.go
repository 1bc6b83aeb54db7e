package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Query parameters that only identify ad campaigns. Two URLs differing only
// in these normalize to one frontier entry.
var trackingParamPrefixes = []string{"utm_", "gclid", "fbclid", "msclkid"}

// NormalizeURL standardizes a URL so syntactic duplicates collapse to one
// frontier entry. It lowercases the scheme and host, removes default ports
// and fragments, strips tracking parameters, sorts the remaining query
// parameters, and drops a bare trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	// A path of just "/" is the same resource as the empty path. Deeper
	// paths keep whatever form the site uses.
	if u.Path == "/" {
		u.Path = ""
	}

	return u.String(), nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
