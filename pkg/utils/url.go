package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var wwwPrefix = regexp.MustCompile(`^(https?://)www\.`)

// NormalizeURL lowercases, adds protocol if missing, removes common prefixes and trailing slash.
// Intended for comparing websites from different sources where formatting varies.
func NormalizeURL(u string) string {
	if u == "" {
		return ""
	}

	n := strings.ToLower(strings.TrimSpace(u))
	if !strings.HasPrefix(n, "http://") && !strings.HasPrefix(n, "https://") {
		n = "https://" + n
	}
	n = wwwPrefix.ReplaceAllString(n, "$1")
	n = strings.TrimSuffix(n, "/")
	return n
}

// ExtractDomain returns just the host portion of a URL-like string.
func ExtractDomain(u string) string {
	n := NormalizeURL(u)
	if n == "" {
		return ""
	}
	parsed, err := url.Parse(n)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// OnDomain reports whether u is hosted on domain or one of its subdomains.
func OnDomain(u, domain string) bool {
	host := ExtractDomain(u)
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// FacebookPageSlug extracts the page name or numeric id from a Facebook URL,
// e.g. "https://www.facebook.com/CitySquashClub/" -> "CitySquashClub".
// Returns "" when u is not a Facebook page link.
func FacebookPageSlug(u string) string {
	if !OnDomain(u, "facebook.com") && !OnDomain(u, "fb.com") {
		return ""
	}
	raw := strings.TrimSpace(u)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if id := parsed.Query().Get("id"); id != "" {
		return id
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ""
	}
	switch strings.ToLower(segs[0]) {
	case "pages":
		// /pages/<name>/<id>
		if len(segs) >= 3 {
			return segs[2]
		}
		return ""
	case "profile.php", "groups", "events", "sharer", "share", "login":
		return ""
	}
	return segs[0]
}
