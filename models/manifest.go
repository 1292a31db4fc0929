package models

// ScrapeManifest describes one run of the index scraper.
type ScrapeManifest struct {
	Source     string   `json:"source"`
	ScrapedAt  string   `json:"scraped_at"`
	TotalFound int      `json:"total_found"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Images     []string `json:"images"`
}

// PageScrapeReport describes one run of the per-listing scraper.
type PageScrapeReport struct {
	Processed        int                 `json:"processed"`
	ImagesFound      int                 `json:"images_found"`
	ImagesDownloaded int                 `json:"images_downloaded"`
	Errors           []string            `json:"errors"`
	PropertyImages   map[string][]string `json:"property_images"`
}

// NewPageScrapeReport returns a report with non-nil collections.
func NewPageScrapeReport() *PageScrapeReport {
	return &PageScrapeReport{
		Errors:         []string{},
		PropertyImages: make(map[string][]string),
	}
}

// MediaEntry is a downloaded image as recorded in the local ledger.
type MediaEntry struct {
	OriginalURL string `json:"original_url" db:"original_url"`
	LocalPath   string `json:"local_path" db:"local_path"`
	ContentHash string `json:"content_hash" db:"content_hash"`
	SizeBytes   int64  `json:"size_bytes" db:"size_bytes"`
	MimeType    string `json:"mime_type" db:"mime_type"`
	RemoteKey   string `json:"remote_key" db:"remote_key"`
}
