package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var styleURL = regexp.MustCompile(`url\(["']?([^"')\s]+)["']?\)`)

// ExtractCandidates lists every image-like URL referenced under sel, in
// document order per source: img src and lazy-load attributes, inline
// style backgrounds, srcset entries, then gallery data attributes.
// Relative URLs are resolved against base.
func ExtractCandidates(sel *goquery.Selection, base *url.URL) []string {
	var out []string
	add := func(raw string) {
		if abs := resolve(base, raw); abs != "" {
			out = append(out, abs)
		}
	}

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if v, ok := img.Attr(attr); ok {
				add(v)
			}
		}
	})

	sel.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		for _, m := range styleURL.FindAllStringSubmatch(style, -1) {
			add(m[1])
		}
	})

	sel.Find("img, source").Each(func(_ int, el *goquery.Selection) {
		for _, attr := range []string{"srcset", "data-srcset"} {
			if v, ok := el.Attr(attr); ok {
				for _, src := range parseSrcset(v) {
					add(src)
				}
			}
		}
	})

	for _, attr := range []string{"data-image", "data-full"} {
		sel.Find("[" + attr + "]").Each(func(_ int, el *goquery.Selection) {
			v, _ := el.Attr(attr)
			add(v)
		})
	}

	return out
}

// parseSrcset returns the URLs of "url1 1x, url2 300w" style lists.
func parseSrcset(srcset string) []string {
	var urls []string
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
