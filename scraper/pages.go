package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"davos_stays/config"
	"davos_stays/models"
)

// PageScraper collects photos from each property's own listing page on the
// partner site.
type PageScraper struct {
	site       *config.SiteConfig
	client     *http.Client
	userAgent  string
	filter     *ImageFilter
	downloader *Downloader
	imagesDir  string
	out        io.Writer
}

type PageOptions struct {
	Limit  int
	DryRun bool
}

func NewPageScraper(site *config.SiteConfig, client *http.Client, downloader *Downloader, imagesDir string, out io.Writer) *PageScraper {
	if out == nil {
		out = io.Discard
	}
	return &PageScraper{
		site:       site,
		client:     client,
		userAgent:  downloader.userAgent,
		filter:     NewImageFilter(site.PageFilter),
		downloader: downloader,
		imagesDir:  imagesDir,
		out:        out,
	}
}

// ScrapePage returns the filtered, de-duplicated photo URLs of one page.
// URLs outside the site's domain yield no images.
func (s *PageScraper) ScrapePage(ctx context.Context, pageURL string) ([]string, error) {
	if pageURL == "" || !strings.Contains(pageURL, s.site.Domain) {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	candidates := ExtractCandidates(doc.Selection, resp.Request.URL)
	return Dedupe(s.filter.Apply(candidates)), nil
}

// Eligible keeps properties whose external link points at the site.
func (s *PageScraper) Eligible(props []models.PropertyRecord) []models.PropertyRecord {
	var out []models.PropertyRecord
	for _, p := range props {
		if p.ExternalLink != nil && strings.Contains(*p.ExternalLink, s.site.Domain) {
			out = append(out, p)
		}
	}
	return out
}

func (s *PageScraper) Run(ctx context.Context, props []models.PropertyRecord, opts PageOptions) *models.PageScrapeReport {
	report := models.NewPageScrapeReport()

	targets := s.Eligible(props)
	fmt.Fprintf(s.out, "Found %d properties with %s links\n", len(targets), s.site.Domain)
	if opts.Limit > 0 && opts.Limit < len(targets) {
		targets = targets[:opts.Limit]
		fmt.Fprintf(s.out, "Limiting to %d properties\n", opts.Limit)
	}

	for i, prop := range targets {
		if ctx.Err() != nil {
			break
		}

		pageURL := *prop.ExternalLink
		fmt.Fprintf(s.out, "\n[%d/%d] %s\n  URL: %s\n", i+1, len(targets), prop.Name, pageURL)

		images, err := s.ScrapePage(ctx, pageURL)
		if err != nil {
			slog.Warn("scrape page failed", "slug", prop.Slug, "url", pageURL, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", prop.Slug, err))
			images = nil
		}
		fmt.Fprintf(s.out, "  Found %d images\n", len(images))

		report.ImagesFound += len(images)
		report.PropertyImages[prop.Slug] = []string{}

		if opts.DryRun {
			for _, img := range firstN(images, 5) {
				fmt.Fprintf(s.out, "    - %s\n", truncate(img, 80))
			}
			report.Processed++
			continue
		}

		s.downloadAll(ctx, prop.Slug, images, report)
		report.Processed++

		pause(ctx, millis(s.site.PageDelayMS))
	}

	return report
}

func (s *PageScraper) downloadAll(ctx context.Context, slug string, images []string, report *models.PageScrapeReport) {
	for idx, imgURL := range firstN(images, s.site.MaxImagesPerProperty) {
		filename := fmt.Sprintf("%s_%02d%s", slug, idx+1, guessExtension(imgURL, ""))
		outPath := filepath.Join(s.imagesDir, filename)
		rel := filepath.ToSlash(outPath)

		res, err := s.downloader.Download(ctx, imgURL, outPath, "properties")
		switch {
		case err == nil && res.Skipped:
			fmt.Fprintf(s.out, "  Already exists: %s\n", filename)
			report.PropertyImages[slug] = append(report.PropertyImages[slug], rel)
			continue
		case err == nil && res.Reused:
			fmt.Fprintf(s.out, "  Copied: %s\n", filename)
			report.ImagesDownloaded++
			report.PropertyImages[slug] = append(report.PropertyImages[slug], rel)
			continue
		case err == nil:
			fmt.Fprintf(s.out, "  Downloaded: %s\n", filename)
			report.ImagesDownloaded++
			report.PropertyImages[slug] = append(report.PropertyImages[slug], rel)
		case errors.Is(err, ErrPlaceholder):
			slog.Debug("placeholder skipped", "url", imgURL, "error", err)
		default:
			slog.Warn("download failed", "url", imgURL, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s: %v", slug, imgURL, err))
		}

		pause(ctx, millis(s.site.DownloadDelayMS))
	}
}

// PrintPageSummary writes the closing block of a per-listing run.
func PrintPageSummary(w io.Writer, report *models.PageScrapeReport, resultsPath, imagesDir string, dryRun bool) {
	fmt.Fprintf(w, "\n%s\nScraping Summary\n%s\n", rule, rule)
	fmt.Fprintf(w, "Properties processed: %d\n", report.Processed)
	fmt.Fprintf(w, "Total images found: %d\n", report.ImagesFound)
	fmt.Fprintf(w, "Images downloaded: %d\n", report.ImagesDownloaded)
	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "Errors: %d\n", len(report.Errors))
	}
	fmt.Fprintf(w, "Results saved to: %s\n", resultsPath)
	if !dryRun {
		fmt.Fprintf(w, "Images saved to: %s\n", imagesDir)
	}
}

const rule = "=================================================="

func firstN(s []string, n int) []string {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
