package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"davos_stays/normalize"
)

const DefaultSiteID = "beststaydavos"

type Config struct {
	Supabase  SupabaseConfig
	S3        S3Config
	Scraper   ScraperConfig
	DBPath    string
	LogLevel  string
	LogFile   string
	DataDir   string
	ImagesDir string
	RulesPath string
	SitesDir  string
	BatchSize int
	Rules     *normalize.Rules
	Sites     map[string]*SiteConfig
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	DBURL      string
	Table      string
}

// Configured reports whether the REST endpoint can be used.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.ServiceKey != ""
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for R2, MinIO, Supabase storage etc.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type ScraperConfig struct {
	ProxyURL  string
	UserAgent string
}

// SiteConfig describes a partner website the image scrapers know how to read.
type SiteConfig struct {
	ID                   string       `yaml:"id"`
	Name                 string       `yaml:"name"`
	Domain               string       `yaml:"domain"`
	IndexURL             string       `yaml:"index_url"`
	MaxImagesPerProperty int          `yaml:"max_images_per_property"`
	MinImageBytes        int64        `yaml:"min_image_bytes"`
	DownloadDelayMS      int          `yaml:"download_delay_ms"`
	PageDelayMS          int          `yaml:"page_delay_ms"`
	IndexDelayMS         int          `yaml:"index_delay_ms"`
	PageFilter           FilterConfig `yaml:"page_filter"`
	IndexFilter          FilterConfig `yaml:"index_filter"`
}

// FilterConfig holds substring patterns for deciding if a URL is a photo.
type FilterConfig struct {
	Skip       []string `yaml:"skip"`
	Require    []string `yaml:"require"`
	Extensions []string `yaml:"extensions"`
	Services   []string `yaml:"services"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        getEnvAny("", "NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"),
			ServiceKey: getEnvAny("", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
			Table:      getEnv("SUPABASE_TABLE", "properties"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "images"),
		},
		Scraper: ScraperConfig{
			ProxyURL:  os.Getenv("SCRAPE_PROXY_URL"),
			UserAgent: getEnv("SCRAPE_USER_AGENT", DefaultUserAgent),
		},
		DBPath:    getEnv("DB_PATH", "data/migrate.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", "data/migrate.log"),
		DataDir:   getEnv("DATA_DIR", "data"),
		ImagesDir: getEnv("IMAGES_DIR", "images"),
		RulesPath: os.Getenv("RULES_PATH"),
		SitesDir:  getEnv("SITES_DIR", "config/sites"),
		BatchSize: getEnvInt("IMPORT_BATCH_SIZE", 50),
		Sites:     make(map[string]*SiteConfig),
	}

	rules, err := normalize.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}
	if _, ok := cfg.Sites[DefaultSiteID]; !ok {
		cfg.Sites[DefaultSiteID] = DefaultSite()
	}

	return cfg, nil
}

// Site returns the named site config, or the default site when id is empty.
func (c *Config) Site(id string) (*SiteConfig, error) {
	if id == "" {
		id = DefaultSiteID
	}
	site, ok := c.Sites[id]
	if !ok {
		return nil, fmt.Errorf("unknown site %q", id)
	}
	return site, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		site, err := ParseSite(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}

		c.Sites[site.ID] = site
	}

	return nil
}

// ParseSite decodes a site YAML on top of the built-in defaults, so a file
// only needs the fields it changes.
func ParseSite(data []byte) (*SiteConfig, error) {
	site := DefaultSite()
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, fmt.Errorf("site config missing id")
	}
	return site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAny returns the first non-empty value among keys.
func getEnvAny(defaultVal string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
