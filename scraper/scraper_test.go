package scraper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"davos_stays/config"
	"davos_stays/models"
)

type fakeLedger struct {
	entries []*models.MediaEntry
}

func (l *fakeLedger) RecordMedia(m *models.MediaEntry) error {
	l.entries = append(l.entries, m)
	return nil
}

func (l *fakeLedger) GetMediaByURL(originalURL string) (*models.MediaEntry, error) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].OriginalURL == originalURL {
			e := *l.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

type fakeUploader struct {
	keys []string
	fail bool
}

func (u *fakeUploader) Key(group, filename string) string {
	return "images/" + group + "/" + filename
}

func (u *fakeUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	if u.fail {
		return errors.New("bucket unavailable")
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	return nil
}

func testSite(domain string) *config.SiteConfig {
	site := config.DefaultSite()
	site.Domain = domain
	site.DownloadDelayMS = 0
	site.PageDelayMS = 0
	site.IndexDelayMS = 0
	return site
}

// newImageServer serves the listing and index fixtures plus a few images
// of various sizes and types.
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	listing := loadFixture(t, "listing.html")
	index := loadFixture(t, "index.html")
	photo := bytes.Repeat([]byte{0xff}, 6000)

	mux := http.NewServeMux()
	mux.HandleFunc("/chalet-bellevue/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(listing)
	})
	mux.HandleFunc("/accommodation/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
	})
	mux.HandleFunc("/wp-content/uploads/2023/12/chalet-a.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	mux.HandleFunc("/wp-content/uploads/2023/12/apartment-b.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(photo[:100])
	})
	mux.HandleFunc("/wp-content/uploads/2024/01/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	mux.HandleFunc("/binary.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(photo)
	})
	mux.HandleFunc("/not-image.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/missing-ua.jpg", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.UserAgent(), "Mozilla") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractCandidatesFromFixture(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loadFixture(t, "listing.html")))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	base, _ := url.Parse("https://beststaydavos.ch/chalet-bellevue/")

	candidates := ExtractCandidates(doc.Selection, base)
	for _, c := range candidates {
		if strings.HasPrefix(c, "data:") {
			t.Fatalf("inline data URL leaked: %q", c)
		}
	}

	f := NewImageFilter(config.DefaultSite().PageFilter)
	got := Dedupe(f.Apply(candidates))
	want := []string{
		"https://beststaydavos.ch/wp-content/uploads/2024/01/living-room.jpg",
		"https://beststaydavos.ch/wp-content/uploads/2024/01/kitchen.jpg?ver=2",
		"https://beststaydavos.ch/media/photos/bedroom.webp",
		"https://beststaydavos.ch/wp-content/uploads/2024/01/terrace.png",
		"https://beststaydavos.ch/wp-content/uploads/2024/01/view-480.webp",
		"https://beststaydavos.ch/wp-content/uploads/2024/01/view-960.webp",
		"https://beststaydavos.ch/wp-content/uploads/2024/01/bath-full",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d images, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("image %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDownload(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	ledger := &fakeLedger{}
	uploader := &fakeUploader{}
	d := NewDownloader(srv.Client(), "", 5000).WithLedger(ledger).WithUploader(uploader)
	ctx := context.Background()

	out := filepath.Join(dir, "chalet.jpg")
	res, err := d.Download(ctx, srv.URL+"/wp-content/uploads/2023/12/chalet-a.jpg", out, "scraped")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Skipped || res.Entry == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Entry.SizeBytes != 6000 || len(res.Entry.ContentHash) != 64 {
		t.Fatalf("entry = %+v", res.Entry)
	}
	if res.Entry.RemoteKey != "images/scraped/chalet.jpg" {
		t.Fatalf("remote key = %q", res.Entry.RemoteKey)
	}
	if len(ledger.entries) != 1 || len(uploader.keys) != 1 {
		t.Fatalf("ledger %d entries, uploader %d keys", len(ledger.entries), len(uploader.keys))
	}

	res, err = d.Download(ctx, srv.URL+"/wp-content/uploads/2023/12/chalet-a.jpg", out, "scraped")
	if err != nil || !res.Skipped {
		t.Fatalf("second download should skip, got %+v, %v", res, err)
	}
	if len(ledger.entries) != 1 {
		t.Fatal("skipped download must not touch the ledger")
	}
}

func TestDownloadReusesLedgerCopy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xAB}, 6000))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ledger := &fakeLedger{}
	d := NewDownloader(srv.Client(), "", 5000).WithLedger(ledger)
	ctx := context.Background()
	imgURL := srv.URL + "/wp-content/uploads/2024/02/lounge.jpg"

	first := filepath.Join(dir, "properties", "chalet-alpina_01.jpg")
	if _, err := d.Download(ctx, imgURL, first, "properties"); err != nil {
		t.Fatalf("first download: %v", err)
	}

	second := filepath.Join(dir, "scraped", "lounge.jpg")
	res, err := d.Download(ctx, imgURL, second, "scraped")
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if !res.Reused || res.Entry == nil || res.Entry.LocalPath != second {
		t.Fatalf("expected reuse into %s, got %+v", second, res)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
	data, err := os.ReadFile(second)
	if err != nil || len(data) != 6000 {
		t.Fatalf("copied file: %d bytes, %v", len(data), err)
	}

	// A changed file on disk no longer matches the ledger hash.
	if err := os.WriteFile(first, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}
	third := filepath.Join(dir, "other", "lounge.jpg")
	res, err = d.Download(ctx, imgURL, third, "other")
	if err != nil || res.Reused {
		t.Fatalf("expected fresh download, got %+v, %v", res, err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestDownloadRejections(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()
	d := NewDownloader(srv.Client(), "", 5000)
	ctx := context.Background()

	_, err := d.Download(ctx, srv.URL+"/wp-content/uploads/2023/12/apartment-b.png", filepath.Join(dir, "small.png"), "scraped")
	if !errors.Is(err, ErrPlaceholder) {
		t.Fatalf("small image err = %v, want ErrPlaceholder", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "small.png")); !os.IsNotExist(statErr) {
		t.Fatal("placeholder file should be removed")
	}

	_, err = d.Download(ctx, srv.URL+"/not-image.jpg", filepath.Join(dir, "page.jpg"), "scraped")
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("html response err = %v, want ErrNotImage", err)
	}

	_, err = d.Download(ctx, srv.URL+"/nope.jpg", filepath.Join(dir, "nope.jpg"), "scraped")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("missing image err = %v", err)
	}

	if _, err := d.Download(ctx, srv.URL+"/binary.jpg", filepath.Join(dir, "binary.jpg"), "scraped"); err != nil {
		t.Fatalf("octet-stream should be accepted: %v", err)
	}
	if _, err := d.Download(ctx, srv.URL+"/missing-ua.jpg", filepath.Join(dir, "ua.jpg"), "scraped"); err != nil {
		t.Fatalf("browser user agent not sent: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloadMirrorFailureIsNotFatal(t *testing.T) {
	srv := newImageServer(t)
	d := NewDownloader(srv.Client(), "", 0).WithUploader(&fakeUploader{fail: true})

	res, err := d.Download(context.Background(), srv.URL+"/binary.jpg", filepath.Join(t.TempDir(), "b.jpg"), "scraped")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Entry.RemoteKey != "" {
		t.Fatalf("remote key should stay empty, got %q", res.Entry.RemoteKey)
	}
}

func strPtr(s string) *string { return &s }

func TestPageScraperRun(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	imagesDir := filepath.Join(t.TempDir(), "properties")
	var out bytes.Buffer

	d := NewDownloader(srv.Client(), "", site.MinImageBytes)
	s := NewPageScraper(site, srv.Client(), d, imagesDir, &out)

	props := []models.PropertyRecord{
		{Name: "Chalet Bellevue", Slug: "chalet-bellevue", ExternalLink: strPtr(srv.URL + "/chalet-bellevue/")},
		{Name: "No Link", Slug: "no-link"},
		{Name: "Elsewhere", Slug: "elsewhere", ExternalLink: strPtr("https://example.org/listing")},
	}

	report := s.Run(context.Background(), props, PageOptions{})
	if report.Processed != 1 {
		t.Fatalf("processed = %d, want 1", report.Processed)
	}
	if report.ImagesFound != 7 {
		t.Fatalf("images found = %d, want 7\n%s", report.ImagesFound, out.String())
	}
	// bedroom.webp is not served and counts as an error.
	if report.ImagesDownloaded != 6 {
		t.Fatalf("images downloaded = %d, want 6\n%s", report.ImagesDownloaded, out.String())
	}
	paths := report.PropertyImages["chalet-bellevue"]
	if len(paths) != 6 {
		t.Fatalf("property images = %v", paths)
	}
	if filepath.Base(paths[0]) != "chalet-bellevue_01.jpg" || filepath.Base(paths[2]) != "chalet-bellevue_04.png" {
		t.Fatalf("unexpected file names: %v", paths)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", report.Errors)
	}
	if !strings.Contains(out.String(), "Found 1 properties with 127.0.0.1 links") {
		t.Fatalf("missing header in output:\n%s", out.String())
	}
}

func TestPageScraperDryRunDownloadsNothing(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	imagesDir := filepath.Join(t.TempDir(), "properties")
	var out bytes.Buffer

	s := NewPageScraper(site, srv.Client(), NewDownloader(srv.Client(), "", 0), imagesDir, &out)
	props := []models.PropertyRecord{
		{Name: "A", Slug: "a", ExternalLink: strPtr(srv.URL + "/chalet-bellevue/")},
		{Name: "B", Slug: "b", ExternalLink: strPtr(srv.URL + "/chalet-bellevue/")},
	}

	report := s.Run(context.Background(), props, PageOptions{DryRun: true, Limit: 1})
	if report.Processed != 1 || report.ImagesFound != 7 || report.ImagesDownloaded != 0 {
		t.Fatalf("report = %+v", report)
	}
	if strings.Count(out.String(), "    - ") != 5 {
		t.Fatalf("dry run should list 5 urls:\n%s", out.String())
	}
	if _, err := os.Stat(imagesDir); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the images directory")
	}
}

func TestPageScraperFetchFailureCountsZero(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	s := NewPageScraper(site, srv.Client(), NewDownloader(srv.Client(), "", 0), t.TempDir(), nil)

	props := []models.PropertyRecord{
		{Name: "Gone", Slug: "gone", ExternalLink: strPtr(srv.URL + "/gone/")},
	}
	report := s.Run(context.Background(), props, PageOptions{})
	if report.Processed != 1 || report.ImagesFound != 0 || len(report.Errors) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got, ok := report.PropertyImages["gone"]; !ok || len(got) != 0 {
		t.Fatalf("property images = %v", report.PropertyImages)
	}
}

func TestSiteScraperCollect(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	site.IndexURL = srv.URL + "/accommodation/"

	s := NewSiteScraper(site, srv.Client(), NewDownloader(srv.Client(), "", site.MinImageBytes), t.TempDir(), nil)
	images, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{
		srv.URL + "/wp-content/uploads/2023/12/apartment-b.png",
		srv.URL + "/wp-content/uploads/2023/12/chalet-a.jpg",
		srv.URL + "/wp-content/uploads/2023/12/studio-c.webp",
	}
	if len(images) != len(want) {
		t.Fatalf("images = %v", images)
	}
	for i := range want {
		if images[i] != want[i] {
			t.Errorf("image %d = %q, want %q", i, images[i], want[i])
		}
	}
}

func TestSiteScraperRun(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	site.IndexURL = srv.URL + "/accommodation/"
	outDir := filepath.Join(t.TempDir(), "scraped")
	ledger := &fakeLedger{}

	d := NewDownloader(srv.Client(), "", site.MinImageBytes).WithLedger(ledger)
	s := NewSiteScraper(site, srv.Client(), d, outDir, nil)

	m := s.Run(context.Background(), false)
	if m.TotalFound != 3 || m.Downloaded != 1 || m.Failed != 2 || m.Skipped != 0 {
		t.Fatalf("manifest = %+v", m)
	}
	if len(m.Images) != 3 || filepath.Base(m.Images[1]) != "chalet-a.jpg" {
		t.Fatalf("images = %v", m.Images)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("ledger entries = %d", len(ledger.entries))
	}

	m = s.Run(context.Background(), false)
	if m.Skipped != 1 || m.Downloaded != 0 {
		t.Fatalf("rerun manifest = %+v", m)
	}
}

func TestSiteScraperDryRunListsURLs(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	site.IndexURL = srv.URL + "/accommodation/"
	outDir := filepath.Join(t.TempDir(), "scraped")

	s := NewSiteScraper(site, srv.Client(), NewDownloader(srv.Client(), "", 0), outDir, nil)
	m := s.Run(context.Background(), true)
	if m.TotalFound != 3 || len(m.Images) != 3 || !strings.HasPrefix(m.Images[0], "http") {
		t.Fatalf("manifest = %+v", m)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the output directory")
	}
}

func TestSiteScraperIndexFailure(t *testing.T) {
	srv := newImageServer(t)
	site := testSite("127.0.0.1")
	site.IndexURL = srv.URL + "/missing/"

	s := NewSiteScraper(site, srv.Client(), NewDownloader(srv.Client(), "", 0), t.TempDir(), nil)
	if _, err := s.Collect(context.Background()); err == nil {
		t.Fatal("expected error for 404 index")
	}
	m := s.Run(context.Background(), false)
	if m.TotalFound != 0 || len(m.Images) != 0 {
		t.Fatalf("manifest = %+v", m)
	}
}
