package httputil

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"davos_stays/config"
)

const (
	PageTimeout     = 10 * time.Second
	DownloadTimeout = 30 * time.Second
	APITimeout      = 30 * time.Second
)

type Clients struct {
	Page     *http.Client // partner pages, proxied when configured
	Download *http.Client // image downloads, proxied when configured
	API      *http.Client // direct, for Supabase
}

func NewClients(cfg *config.ScraperConfig) (*Clients, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg != nil && cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Clients{
		Page:     &http.Client{Timeout: PageTimeout, Transport: transport},
		Download: &http.Client{Timeout: DownloadTimeout, Transport: transport},
		API:      &http.Client{Timeout: APITimeout},
	}, nil
}
