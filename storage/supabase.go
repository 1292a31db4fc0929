package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"davos_stays/config"
	"davos_stays/models"
)

// SupabaseSink inserts property rows through the PostgREST endpoint.
type SupabaseSink struct {
	url        string
	serviceKey string
	table      string
	client     *http.Client
}

func NewSupabaseSink(cfg *config.SupabaseConfig, client *http.Client) *SupabaseSink {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	table := cfg.Table
	if table == "" {
		table = "properties"
	}
	return &SupabaseSink{
		url:        strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		table:      table,
		client:     client,
	}
}

func (s *SupabaseSink) Name() string {
	return "supabase rest"
}

// Submit inserts rows in a single request.
func (s *SupabaseSink) Submit(ctx context.Context, rows []models.PropertyRow) (models.SubmitResult, error) {
	var result models.SubmitResult
	if len(rows) == 0 {
		return result, nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url+"/rest/v1/"+s.table, bytes.NewReader(data))
	if err != nil {
		return result, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result, fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	result.Inserted = len(rows)
	result.Batches = 1
	return result, nil
}
