package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunKind string

const (
	RunKindImport       RunKind = "import"
	RunKindScrapeImages RunKind = "scrape_images"
	RunKindScrapeSite   RunKind = "scrape_site"
)

type ImportRun struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Kind         RunKind    `json:"kind" db:"kind"`
	Source       string     `json:"source" db:"source"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	RowsSeen     int        `json:"rows_seen" db:"rows_seen"`
	Properties   int        `json:"properties" db:"properties"`
	PricingRules int        `json:"pricing_rules" db:"pricing_rules"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
	RemoteStatus string     `json:"remote_status" db:"remote_status"`
}

// NewRun starts a run record with a fresh id.
func NewRun(kind RunKind, source string) *ImportRun {
	return &ImportRun{
		ID:        uuid.New(),
		Kind:      kind,
		Source:    source,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}
