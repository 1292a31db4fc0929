package config

import "testing"

func TestParseSiteKeepsDefaults(t *testing.T) {
	site, err := ParseSite([]byte("id: other\ndomain: example.ch\nmin_image_bytes: 100\n"))
	if err != nil {
		t.Fatalf("ParseSite: %v", err)
	}
	if site.ID != "other" || site.Domain != "example.ch" {
		t.Fatalf("unexpected site: %+v", site)
	}
	if site.MinImageBytes != 100 {
		t.Fatalf("min bytes = %d, want 100", site.MinImageBytes)
	}
	if site.MaxImagesPerProperty != 10 {
		t.Fatalf("max images = %d, want default 10", site.MaxImagesPerProperty)
	}
	if len(site.PageFilter.Skip) == 0 {
		t.Fatal("page filter skip list should fall back to defaults")
	}
}

func TestParseSiteRequiresID(t *testing.T) {
	if _, err := ParseSite([]byte("id: \"\"\n")); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestLoadFallbacks(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "")
	t.Setenv("SUPABASE_URL", "https://db.example")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "role-key")
	t.Setenv("SITES_DIR", t.TempDir())
	t.Setenv("IMPORT_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Supabase.URL != "https://db.example" {
		t.Fatalf("url = %q", cfg.Supabase.URL)
	}
	if !cfg.Supabase.Configured() {
		t.Fatal("supabase should be configured")
	}
	if cfg.BatchSize != 25 {
		t.Fatalf("batch size = %d", cfg.BatchSize)
	}
	if cfg.Rules == nil {
		t.Fatal("rules not loaded")
	}
	site, err := cfg.Site("")
	if err != nil {
		t.Fatalf("Site: %v", err)
	}
	if site.ID != DefaultSiteID {
		t.Fatalf("default site = %q", site.ID)
	}
	if _, err := cfg.Site("nope"); err == nil {
		t.Fatal("expected unknown site error")
	}
}
