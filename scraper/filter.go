package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"davos_stays/config"
)

// ImageFilter decides whether a URL is likely a property photo rather than
// a logo, icon, tracking pixel or theme asset. All matching is on
// lower-cased substrings.
type ImageFilter struct {
	skip       []string
	require    []string
	extensions []string
	services   []string
}

func NewImageFilter(cfg config.FilterConfig) *ImageFilter {
	return &ImageFilter{
		skip:       lowerAll(cfg.Skip),
		require:    lowerAll(cfg.Require),
		extensions: lowerAll(cfg.Extensions),
		services:   lowerAll(cfg.Services),
	}
}

func (f *ImageFilter) Accept(rawURL string) bool {
	u := strings.ToLower(rawURL)

	for _, p := range f.skip {
		if strings.Contains(u, p) {
			return false
		}
	}
	for _, p := range f.require {
		if !strings.Contains(u, p) {
			return false
		}
	}

	if len(f.extensions) == 0 && len(f.services) == 0 {
		return true
	}
	return containsAny(u, f.extensions) || containsAny(u, f.services)
}

// Apply keeps accepted URLs in their original order.
func (f *ImageFilter) Apply(urls []string) []string {
	var out []string
	for _, u := range urls {
		if f.Accept(u) {
			out = append(out, u)
		}
	}
	return out
}

// Dedupe drops URLs that differ only in their query string. The first
// occurrence wins and order is kept.
func Dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key, _, _ := strings.Cut(u, "?")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

var sizeSuffix = regexp.MustCompile(`-\d+x\d+(\.[a-zA-Z]+)$`)

// FullSizeURL turns a WordPress thumbnail URL such as
// photo-300x200.jpg into the original upload, photo.jpg.
func FullSizeURL(u string) string {
	return sizeSuffix.ReplaceAllString(u, "$1")
}

// Basename returns the last path segment of a URL, without the query.
func Basename(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		p := strings.TrimRight(parsed.Path, "/")
		return p[strings.LastIndex(p, "/")+1:]
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
