package util

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormaliseDomain removes http/https prefix, www. and any trailing slash from a domain
func NormaliseDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimSuffix(domain, "/")

	return strings.ToLower(domain)
}

// IsCrawlableHref reports whether an href from an anchor can lead to another page.
// Empty, fragment-only and non-navigational schemes are rejected.
func IsCrawlableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "sms:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// NormaliseURL turns a raw href into the canonical absolute form used for
// dedup and host comparison.
//
// Query string and fragment are dropped, trailing slashes are removed,
// root-relative links resolve against the scheme and host of base (or seed
// when base is empty) and other scheme-less links resolve against the
// directory of base. Absolute URLs are only stripped. When the href or the
// base cannot be parsed the raw input is returned unchanged, so the function
// never fails and normalising its own output is a no-op.
func NormaliseURL(rawURL, base, seed string) string {
	href := strings.TrimSpace(rawURL)
	href = stripQueryAndFragment(href)
	if href == "" && base != "" {
		// "?page=2" or "#top" point back at the page itself.
		return NormaliseURL(base, "", seed)
	}

	ref, err := url.Parse(href)
	if err != nil {
		log.Debug().Str("url", rawURL).Err(err).Msg("Unparseable href, leaving as-is")
		return rawURL
	}

	if ref.Scheme != "" {
		return stripTrailingSlash(href)
	}

	if base == "" {
		base = seed
	}
	baseURL, err := url.Parse(stripQueryAndFragment(strings.TrimSpace(base)))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return rawURL
	}

	var resolved *url.URL
	switch {
	case ref.Host != "":
		// Protocol-relative link, take the scheme of the base.
		resolved = ref
		resolved.Scheme = baseURL.Scheme
	case strings.HasPrefix(href, "/"):
		resolved = &url.URL{Scheme: baseURL.Scheme, Host: baseURL.Host}
		resolved = resolved.ResolveReference(ref)
	default:
		dir := &url.URL{Scheme: baseURL.Scheme, Host: baseURL.Host, Path: directoryOf(baseURL.Path)}
		resolved = dir.ResolveReference(ref)
	}

	return stripTrailingSlash(resolved.String())
}

// HostOf returns the comparable host of a URL (lowercase, www. removed), or
// an empty string when the URL has none.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return NormaliseDomain(parsed.Host)
}

// SameHost reports whether two absolute URLs point at the same site.
func SameHost(a, b string) bool {
	hostA := HostOf(a)
	return hostA != "" && hostA == HostOf(b)
}

// SchemeAndHost returns "scheme://host" for an absolute URL.
func SchemeAndHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

func stripQueryAndFragment(href string) string {
	if idx := strings.Index(href, "#"); idx >= 0 {
		href = href[:idx]
	}
	if idx := strings.Index(href, "?"); idx >= 0 {
		href = href[:idx]
	}
	return href
}

// stripTrailingSlash removes every trailing slash so the result stays stable
// on re-normalisation.
func stripTrailingSlash(u string) string {
	return strings.TrimRight(u, "/")
}

func directoryOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "/"
	}
	return path[:idx+1]
}
