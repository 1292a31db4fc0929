package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocolly/colly/v2"

	"davos_stays/config"
	"davos_stays/models"
)

// SiteScraper harvests every upload referenced from the site's listing
// index and stores the full-size originals in one shared folder.
type SiteScraper struct {
	site       *config.SiteConfig
	client     *http.Client
	userAgent  string
	filter     *ImageFilter
	downloader *Downloader
	outDir     string
	out        io.Writer
}

func NewSiteScraper(site *config.SiteConfig, client *http.Client, downloader *Downloader, outDir string, out io.Writer) *SiteScraper {
	if out == nil {
		out = io.Discard
	}
	return &SiteScraper{
		site:       site,
		client:     client,
		userAgent:  downloader.userAgent,
		filter:     NewImageFilter(site.IndexFilter),
		downloader: downloader,
		outDir:     outDir,
		out:        out,
	}
}

func (s *SiteScraper) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)

	transport := http.DefaultTransport
	timeout := 30 * time.Second
	if s.client != nil {
		if s.client.Transport != nil {
			transport = s.client.Transport
		}
		if s.client.Timeout > 0 {
			timeout = s.client.Timeout
		}
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	return c
}

// Collect returns the sorted full-size image URLs found on the index page.
func (s *SiteScraper) Collect(ctx context.Context) ([]string, error) {
	c := s.newCollector(ctx)

	var candidates []string
	var fetchErr error

	c.OnHTML("html", func(e *colly.HTMLElement) {
		candidates = append(candidates, ExtractCandidates(e.DOM, e.Request.URL)...)
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s (status %d): %w", r.Request.URL, r.StatusCode, err)
	})

	fmt.Fprintf(s.out, "Fetching: %s\n", s.site.IndexURL)
	if err := c.Visit(s.site.IndexURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	var full []string
	for _, u := range s.filter.Apply(candidates) {
		full = append(full, FullSizeURL(u))
	}
	images := Dedupe(full)
	sort.Strings(images)
	return images, nil
}

// Run collects the index images and, unless dryRun, downloads them. The
// manifest lists local paths, or the URLs themselves in a dry run. A failed
// index fetch is reported as zero images.
func (s *SiteScraper) Run(ctx context.Context, dryRun bool) *models.ScrapeManifest {
	images, err := s.Collect(ctx)
	if err != nil {
		slog.Error("index scrape failed", "url", s.site.IndexURL, "error", err)
		images = nil
	}

	fmt.Fprintf(s.out, "\nFound %d unique property images\n", len(images))

	manifest := &models.ScrapeManifest{
		Source:     s.site.Domain,
		ScrapedAt:  time.Now().Format("2006-01-02 15:04:05"),
		TotalFound: len(images),
		Images:     []string{},
	}

	if dryRun {
		fmt.Fprintln(s.out, "\nSample images (dry run):")
		for _, img := range firstN(images, 20) {
			fmt.Fprintf(s.out, "  %s\n", img)
		}
		manifest.Images = append(manifest.Images, images...)
		return manifest
	}

	fmt.Fprintf(s.out, "\nDownloading to: %s\n", s.outDir)

	for i, imgURL := range images {
		if ctx.Err() != nil {
			break
		}

		filename := Basename(imgURL)
		if filename == "" {
			manifest.Failed++
			continue
		}
		outPath := filepath.Join(s.outDir, filename)
		manifest.Images = append(manifest.Images, filepath.ToSlash(outPath))

		res, err := s.downloader.Download(ctx, imgURL, outPath, "scraped")
		switch {
		case err == nil && res.Skipped:
			fmt.Fprintf(s.out, "[%d/%d] Skipping (exists): %s\n", i+1, len(images), filename)
			manifest.Skipped++
			continue
		case err == nil && res.Reused:
			fmt.Fprintf(s.out, "[%d/%d] Copied: %s\n", i+1, len(images), filename)
			manifest.Downloaded++
			continue
		case err == nil:
			fmt.Fprintf(s.out, "[%d/%d] Downloaded: %s\n", i+1, len(images), filename)
			manifest.Downloaded++
		case errors.Is(err, ErrPlaceholder):
			fmt.Fprintf(s.out, "[%d/%d] Placeholder: %s\n", i+1, len(images), filename)
			manifest.Failed++
		default:
			slog.Warn("download failed", "url", imgURL, "error", err)
			manifest.Failed++
		}

		pause(ctx, millis(s.site.IndexDelayMS))
	}

	sort.Strings(manifest.Images)
	return manifest
}

func PrintSiteSummary(w io.Writer, m *models.ScrapeManifest, manifestPath string) {
	fmt.Fprintf(w, "\n%s\nScraping Complete\n%s\n", rule, rule)
	fmt.Fprintf(w, "Downloaded: %d\n", m.Downloaded)
	fmt.Fprintf(w, "Skipped (already exists): %d\n", m.Skipped)
	fmt.Fprintf(w, "Failed: %d\n", m.Failed)
	fmt.Fprintf(w, "Manifest saved to: %s\n", manifestPath)
}
