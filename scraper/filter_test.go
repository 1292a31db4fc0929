package scraper

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"davos_stays/config"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return data
}

func TestPageFilter(t *testing.T) {
	f := NewImageFilter(config.DefaultSite().PageFilter)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://beststaydavos.ch/wp-content/uploads/logo.png", false},
		{"https://beststaydavos.ch/favicon.png", false},
		{"https://beststaydavos.ch/img/map.svg", false},
		{"https://beststaydavos.ch/img/anim.gif", false},
		{"https://beststaydavos.ch/wp-content/themes/x/bg.jpg", false},
		{"https://beststaydavos.ch/img/LOGO-big.JPG", false},
		{"https://beststaydavos.ch/img/room.jpg", true},
		{"https://beststaydavos.ch/img/room.png", true},
		{"https://beststaydavos.ch/img/room.webp", true},
		{"https://beststaydavos.ch/img/room.JPEG", true},
		{"https://res.cloudinary.com/demo/image/upload/bath", true},
		{"https://beststaydavos.ch/wp-content/uploads/2024/01/file", true},
		{"https://beststaydavos.ch/page.html", false},
	}

	for _, tt := range tests {
		if got := f.Accept(tt.url); got != tt.want {
			t.Errorf("Accept(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIndexFilter(t *testing.T) {
	f := NewImageFilter(config.DefaultSite().IndexFilter)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://x.ch/wp-content/uploads/2023/12/chalet.jpg", true},
		{"https://x.ch/wp-content/uploads/2023/12/banner-top.jpg", false},
		{"https://x.ch/wp-content/uploads/2023/12/header.png", false},
		{"https://x.ch/images/chalet.jpg", false},
		{"https://x.ch/wp-content/uploads/2023/12/doc.pdf", false},
	}

	for _, tt := range tests {
		if got := f.Accept(tt.url); got != tt.want {
			t.Errorf("Accept(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestEmptyFilterAcceptsAll(t *testing.T) {
	f := NewImageFilter(config.FilterConfig{})
	if !f.Accept("https://anything/at/all") {
		t.Fatal("empty filter should accept")
	}
}

func TestDedupe(t *testing.T) {
	in := []string{
		"https://x/a.jpg?v=1",
		"https://x/b.jpg",
		"https://x/a.jpg?v=2",
		"https://x/a.jpg",
		"https://x/b.jpg",
	}
	got := Dedupe(in)
	want := []string{"https://x/a.jpg?v=1", "https://x/b.jpg"}
	if len(got) != len(want) {
		t.Fatalf("Dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dedupe[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFullSizeURL(t *testing.T) {
	tests := map[string]string{
		"https://x/wp-content/uploads/chalet-300x200.jpg":  "https://x/wp-content/uploads/chalet.jpg",
		"https://x/wp-content/uploads/chalet-1024x683.PNG": "https://x/wp-content/uploads/chalet.PNG",
		"https://x/wp-content/uploads/chalet.jpg":          "https://x/wp-content/uploads/chalet.jpg",
		"https://x/wp-content/uploads/2x3-room.jpg":        "https://x/wp-content/uploads/2x3-room.jpg",
	}
	for in, want := range tests {
		if got := FullSizeURL(in); got != want {
			t.Errorf("FullSizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBasename(t *testing.T) {
	if got := Basename("https://x/wp-content/uploads/a/chalet.jpg?ver=1"); got != "chalet.jpg" {
		t.Fatalf("Basename = %q", got)
	}
	if got := Basename("https://x"); got != "" {
		t.Fatalf("Basename of host-only url = %q", got)
	}
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		url, ct, want string
	}{
		{"https://x/a.JPEG", "", ".jpg"},
		{"https://x/a.png?x=1", "", ".png"},
		{"https://x/a.webp", "", ".webp"},
		{"https://res.cloudinary.com/demo/upload/bath", "", ".jpg"},
		{"https://x/noext", "image/png", ".png"},
	}
	for _, tt := range tests {
		if got := guessExtension(tt.url, tt.ct); got != tt.want {
			t.Errorf("guessExtension(%q, %q) = %q, want %q", tt.url, tt.ct, got, tt.want)
		}
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate("https://x.ch/wp-content/uploads/hüsli-außen.jpg", 34)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "https://x.ch/wp-content/uploads/hü..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short.jpg", 80); got != "short.jpg" {
		t.Fatalf("short strings should be unchanged, got %q", got)
	}
}
