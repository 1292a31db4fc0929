package config

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var defaultSkipPatterns = []string{
	"logo", "icon", "favicon", "sprite", "avatar", "loading", "spinner",
	"placeholder", "blank", "button", "arrow", "social", "share",
	"wp-includes", "wp-content/themes", "gravatar",
	"facebook", "twitter", "instagram",
	".svg", ".gif", "1x1", "2x2", "pixel",
}

var defaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// DefaultSite is the partner site used when no YAML overrides it.
func DefaultSite() *SiteConfig {
	return &SiteConfig{
		ID:                   DefaultSiteID,
		Name:                 "Best Stay Davos",
		Domain:               "beststaydavos.ch",
		IndexURL:             "https://beststaydavos.ch/accommodation/",
		MaxImagesPerProperty: 10,
		MinImageBytes:        5000,
		DownloadDelayMS:      500,
		PageDelayMS:          1000,
		IndexDelayMS:         300,
		PageFilter: FilterConfig{
			Skip:       append([]string(nil), defaultSkipPatterns...),
			Extensions: append([]string(nil), defaultExtensions...),
			Services:   []string{"cloudinary", "imgix", "unsplash", "cloudfront", "wp-content/uploads"},
		},
		IndexFilter: FilterConfig{
			Skip:       []string{"logo", "icon", "favicon", "banner", "header"},
			Require:    []string{"wp-content/uploads"},
			Extensions: append([]string(nil), defaultExtensions...),
		},
	}
}
