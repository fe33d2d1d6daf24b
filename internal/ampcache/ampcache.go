// Package ampcache describes the configured cache mirrors and rewrites page
// URLs into their cache form.
package ampcache

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/net/idna"

	"github.com/JakeFAU/storylint/internal/hash/sha256"
)

// maxLabelLength is the longest DNS label the human-readable encoding may
// produce before falling back to the hashed form.
const maxLabelLength = 63

// Domain is one cache mirror origin.
type Domain struct {
	ID           string `mapstructure:"id" json:"id" yaml:"id"`
	DomainSuffix string `mapstructure:"domain_suffix" json:"domain_suffix" yaml:"domain_suffix"`
}

// Defaults returns the public caches listed at cdn.ampproject.org/caches.json.
func Defaults() []Domain {
	return []Domain{
		{ID: "google", DomainSuffix: "cdn.ampproject.org"},
		{ID: "cloudflare", DomainSuffix: "amp.cloudflare.com"},
		{ID: "bing", DomainSuffix: "bing-amp.com"},
	}
}

// Validate rejects incomplete cache definitions.
func Validate(domains []Domain) error {
	seen := make(map[string]struct{}, len(domains))
	for i, d := range domains {
		if d.ID == "" || d.DomainSuffix == "" {
			return fmt.Errorf("caches[%d]: id and domain_suffix are required", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("caches[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

// Subdomain encodes host into the single DNS label used by caches. Hosts
// that cannot be expressed readably fall back to a hashed label.
func Subdomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if readableEligible(host) {
		if label, ok := readableLabel(host); ok {
			return label
		}
	}
	return fallbackLabel(host)
}

func readableEligible(host string) bool {
	if len(host) > maxLabelLength {
		return false
	}
	unicodeHost, err := idna.Punycode.ToUnicode(host)
	if err != nil {
		return false
	}
	return !(hasRTL(unicodeHost) && hasLTR(unicodeHost))
}

func readableLabel(host string) (string, bool) {
	unicodeHost, err := idna.Punycode.ToUnicode(host)
	if err != nil {
		return "", false
	}
	label := strings.ReplaceAll(unicodeHost, "-", "--")
	label = strings.ReplaceAll(label, ".", "-")
	if len(label) >= 4 && label[2] == '-' && label[3] == '-' {
		label = "0-" + label + "-0"
	}
	ascii, err := idna.Punycode.ToASCII(label)
	if err != nil {
		return "", false
	}
	ascii = strings.ToLower(ascii)
	if len(ascii) > maxLabelLength {
		return "", false
	}
	return ascii, true
}

func fallbackLabel(host string) string {
	return sha256.Base32([]byte(host))
}

func hasRTL(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hebrew, unicode.Arabic, unicode.Syriac, unicode.Thaana, unicode.Nko) {
			return true
		}
	}
	return false
}

func hasLTR(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.In(r, unicode.Hebrew, unicode.Arabic, unicode.Syriac, unicode.Thaana, unicode.Nko) {
			return true
		}
	}
	return false
}

// Origin returns the scheme and host a cache serves pageURL from, taken from
// the rewritten cache URL.
func Origin(domainSuffix, pageURL string) (string, error) {
	cacheURL, err := URL(domainSuffix, pageURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(cacheURL)
	if err != nil {
		return "", fmt.Errorf("parse cache url %q: %w", cacheURL, err)
	}
	return u.Scheme + "://" + u.Host, nil
}

// URL rewrites pageURL into the cache URL served from domainSuffix.
func URL(domainSuffix, pageURL string) (string, error) {
	u, err := parseAbsolute(pageURL)
	if err != nil {
		return "", err
	}
	segment := resourceSegment(u.Path)
	if u.Scheme == "https" {
		segment += "/s/"
	} else {
		segment += "/"
	}
	cache := url.URL{
		Scheme:   "https",
		Host:     Subdomain(u.Hostname()) + "." + domainSuffix,
		Path:     segment + u.Hostname() + u.EscapedPath(),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	return cache.String(), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}
	return u, nil
}

var (
	imageExtensions = map[string]struct{}{
		".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {}, ".avif": {},
	}
	fontExtensions = map[string]struct{}{
		".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	}
)

func resourceSegment(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if _, ok := imageExtensions[ext]; ok {
		return "/i"
	}
	if _, ok := fontExtensions[ext]; ok {
		return "/r"
	}
	return "/c"
}
