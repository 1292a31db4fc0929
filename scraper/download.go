package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"davos_stays/config"
	"davos_stays/models"
)

var (
	ErrPlaceholder = errors.New("image below minimum size")
	ErrNotImage    = errors.New("response is not an image")
)

const maxImageBytes = 50 * 1024 * 1024

// MediaLedger records downloaded images, e.g. storage.SQLiteStore.
type MediaLedger interface {
	RecordMedia(m *models.MediaEntry) error
	GetMediaByURL(originalURL string) (*models.MediaEntry, error)
}

// Uploader mirrors a downloaded file, e.g. storage.S3Uploader.
type Uploader interface {
	Key(group, filename string) string
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Downloader fetches single images to disk.
type Downloader struct {
	client    *http.Client
	userAgent string
	minBytes  int64
	ledger    MediaLedger
	uploader  Uploader
}

type DownloadResult struct {
	Path    string
	Skipped bool // file already existed
	Reused  bool // copied from a path the ledger already had for this URL
	Entry   *models.MediaEntry
}

func NewDownloader(client *http.Client, userAgent string, minBytes int64) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Downloader{client: client, userAgent: userAgent, minBytes: minBytes}
}

func (d *Downloader) WithLedger(l MediaLedger) *Downloader {
	d.ledger = l
	return d
}

func (d *Downloader) WithUploader(u Uploader) *Downloader {
	d.uploader = u
	return d
}

// Download saves rawURL to outPath. Existing files are left alone.
// group names the mirror folder, e.g. "properties" or "scraped".
func (d *Downloader) Download(ctx context.Context, rawURL, outPath, group string) (DownloadResult, error) {
	result := DownloadResult{Path: outPath}

	if _, err := os.Stat(outPath); err == nil {
		result.Skipped = true
		return result, nil
	}

	if entry, ok := d.reuse(rawURL, outPath); ok {
		slog.Debug("reused earlier download", "url", rawURL, "from", entry.LocalPath, "to", outPath)
		entry.LocalPath = outPath
		result.Reused = true
		result.Entry = entry
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return result, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "image") && !strings.Contains(contentType, "octet-stream") {
		return result, fmt.Errorf("%w: %q", ErrNotImage, contentType)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return result, fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".download-*")
	if err != nil {
		return result, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), io.LimitReader(resp.Body, maxImageBytes))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return result, fmt.Errorf("write image: %w", err)
	}

	if size < d.minBytes {
		return result, fmt.Errorf("%w: %d bytes", ErrPlaceholder, size)
	}

	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return result, fmt.Errorf("rename: %w", err)
	}

	entry := &models.MediaEntry{
		OriginalURL: rawURL,
		LocalPath:   outPath,
		ContentHash: hex.EncodeToString(hash.Sum(nil)),
		SizeBytes:   size,
		MimeType:    contentType,
	}
	result.Entry = entry

	if d.uploader != nil {
		key := d.uploader.Key(group, filepath.Base(outPath))
		if err := d.mirror(ctx, outPath, key, contentType); err != nil {
			slog.Warn("mirror upload failed", "url", rawURL, "key", key, "error", err)
		} else {
			entry.RemoteKey = key
		}
	}

	if d.ledger != nil {
		if err := d.ledger.RecordMedia(entry); err != nil {
			slog.Warn("record media failed", "url", rawURL, "error", err)
		}
	}

	return result, nil
}

// reuse copies the file the ledger recorded for rawURL to outPath. The copy
// only counts when its hash still matches the ledger.
func (d *Downloader) reuse(rawURL, outPath string) (*models.MediaEntry, bool) {
	if d.ledger == nil {
		return nil, false
	}
	prev, err := d.ledger.GetMediaByURL(rawURL)
	if err != nil {
		slog.Debug("media lookup failed", "url", rawURL, "error", err)
		return nil, false
	}
	if prev == nil || prev.LocalPath == "" || prev.LocalPath == outPath {
		return nil, false
	}

	src, err := os.Open(prev.LocalPath)
	if err != nil {
		return nil, false
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, false
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".download-*")
	if err != nil {
		return nil, false
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, hash), src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil || hex.EncodeToString(hash.Sum(nil)) != prev.ContentHash {
		return nil, false
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return nil, false
	}

	entry := *prev
	return &entry, true
}

func (d *Downloader) mirror(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return d.uploader.Upload(ctx, key, f, contentType)
}

// guessExtension determines file extension from URL or content-type
func guessExtension(rawURL, contentType string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png", ".webp", ".gif":
		return ext
	}

	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// pause waits for d unless ctx is done first.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
