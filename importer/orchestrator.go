package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"davos_stays/identity"
	"davos_stays/models"
	"davos_stays/normalize"
	"davos_stays/storage"
)

const (
	DefaultBatchSize = 50

	PropertiesFile   = "properties.json"
	PricingRulesFile = "pricing_rules.json"
)

// Sink is a remote destination for property rows.
type Sink interface {
	Name() string
	Submit(ctx context.Context, rows []models.PropertyRow) (models.SubmitResult, error)
}

// History records runs and per-row problems, e.g. storage.SQLiteStore.
type History interface {
	CreateRun(run *models.ImportRun) error
	FinishRun(run *models.ImportRun) error
	Log(runID uuid.UUID, level models.LogLevel, row int, message string) error
}

type Options struct {
	DryRun    bool
	JSONOnly  bool
	Limit     int
	OutputDir string
	Source    string
}

type Orchestrator struct {
	normalizer *normalize.Normalizer
	sink       Sink
	history    History
	batchSize  int
	out        io.Writer

	// sinkMissing explains why no sink is configured.
	sinkMissing string
}

func NewOrchestrator(n *normalize.Normalizer, out io.Writer) *Orchestrator {
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		normalizer: n,
		batchSize:  DefaultBatchSize,
		out:        out,
	}
}

func (o *Orchestrator) SetSink(s Sink) {
	o.sink = s
}

// SetSinkMissing records the message printed when a push is wanted but no
// sink could be built.
func (o *Orchestrator) SetSinkMissing(reason string) {
	o.sinkMissing = reason
}

func (o *Orchestrator) SetHistory(h History) {
	o.history = h
}

func (o *Orchestrator) SetBatchSize(n int) {
	if n > 0 {
		o.batchSize = n
	}
}

// Run normalizes rows, writes both JSON files and optionally pushes the
// properties to the sink. Only a failure to write the JSON output is
// returned as an error; everything else ends up in the report.
func (o *Orchestrator) Run(ctx context.Context, rows []models.RawRow, opts Options) (*Report, error) {
	run := models.NewRun(models.RunKindImport, opts.Source)
	if o.history != nil {
		if err := o.history.CreateRun(run); err != nil {
			slog.Warn("history unavailable", "error", err)
			o.history = nil
		}
	}

	report := &Report{
		RunID:        run.ID,
		Properties:   []models.PropertyRecord{},
		PricingRules: []models.PricingRuleRecord{},
	}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		run.RowsSeen = report.RowsSeen
		run.Properties = len(report.Properties)
		run.PricingRules = len(report.PricingRules)
		run.ErrorsCount = len(report.Errors)
		run.RemoteStatus = report.Remote.Status()
		if run.Status == models.RunStatusRunning {
			run.Status = models.RunStatusCompleted
		}
		if o.history != nil {
			if err := o.history.FinishRun(run); err != nil {
				slog.Warn("failed to finish run", "run", run.ID, "error", err)
			}
		}
	}()

	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}

	o.normalizeRows(run.ID, rows, report)

	report.ByType = countBy(report.Properties, func(p models.PropertyRecord) string { return p.PropertyType })
	report.ByCity = countBy(report.Properties, func(p models.PropertyRecord) string { return p.City })
	PrintSummary(o.out, report)

	report.PropertiesPath = filepath.Join(opts.OutputDir, PropertiesFile)
	report.PricingRulesPath = filepath.Join(opts.OutputDir, PricingRulesFile)
	if err := storage.WriteJSON(report.PropertiesPath, report.Properties); err != nil {
		run.Status = models.RunStatusFailed
		return report, fmt.Errorf("write properties: %w", err)
	}
	if err := storage.WriteJSON(report.PricingRulesPath, report.PricingRules); err != nil {
		run.Status = models.RunStatusFailed
		return report, fmt.Errorf("write pricing rules: %w", err)
	}
	fmt.Fprintf(o.out, "\nSaved properties to: %s\n", report.PropertiesPath)
	fmt.Fprintf(o.out, "Saved pricing rules to: %s\n", report.PricingRulesPath)

	switch {
	case opts.JSONOnly:
		report.Remote.Skipped = "json only"
		fmt.Fprintln(o.out, "\n--json-only flag set, skipping database import")
	case opts.DryRun:
		report.Remote.Skipped = "dry run"
		fmt.Fprintln(o.out, "\n--dry-run flag set, skipping database import")
	case o.sink == nil:
		report.Remote.Skipped = "not configured"
		fmt.Fprintln(o.out)
		if o.sinkMissing != "" {
			fmt.Fprintln(o.out, o.sinkMissing)
		}
		fmt.Fprintln(o.out, "JSON files have been saved for manual import.")
	default:
		o.push(ctx, run.ID, report)
	}

	return report, nil
}

func (o *Orchestrator) normalizeRows(runID uuid.UUID, rows []models.RawRow, report *Report) {
	slugs := identity.NewSlugSet()
	seen := identity.NewTracker()

	for _, row := range rows {
		report.RowsSeen++

		record, pricing, err := o.normalizeRow(row, slugs)
		if errors.Is(err, normalize.ErrBlankRow) {
			report.Blank++
			continue
		}
		if err != nil {
			msg := rowMessage(row.Number, err)
			report.Errors = append(report.Errors, msg)
			o.log(runID, models.LogLevelError, row.Number, msg)
			continue
		}

		if first, dup := seen.Observe(identity.Fingerprint(record), row.Number); dup {
			msg := fmt.Sprintf("Row %d: looks like a duplicate of row %d (%s)", row.Number, first, record.Address)
			report.Duplicates = append(report.Duplicates, msg)
			o.log(runID, models.LogLevelWarn, row.Number, msg)
		}

		report.Properties = append(report.Properties, *record)
		if pricing != nil {
			report.PricingRules = append(report.PricingRules, *pricing)
		}
	}
}

// normalizeRow turns a panic inside the normalizer into a row error.
func (o *Orchestrator) normalizeRow(row models.RawRow, slugs normalize.SlugClaimer) (rec *models.PropertyRecord, pricing *models.PricingRuleRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, pricing = nil, nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return o.normalizer.Row(row, slugs)
}

func (o *Orchestrator) push(ctx context.Context, runID uuid.UUID, report *Report) {
	report.Remote.Attempted = true
	report.Remote.Sink = o.sink.Name()

	rows := make([]models.PropertyRow, 0, len(report.Properties))
	for i := range report.Properties {
		rows = append(rows, report.Properties[i].RemoteRow())
	}

	fmt.Fprintf(o.out, "\nConnecting to %s...\n", report.Remote.Sink)
	fmt.Fprintf(o.out, "Inserting %d properties...\n", len(rows))

	total := (len(rows) + o.batchSize - 1) / o.batchSize
	for start := 0; start < len(rows); start += o.batchSize {
		end := min(start+o.batchSize, len(rows))
		batch := start/o.batchSize + 1

		res, err := o.sink.Submit(ctx, rows[start:end])
		report.Remote.Result.Inserted += res.Inserted
		report.Remote.Result.Rejected += res.Rejected
		report.Remote.Result.Batches++
		if err != nil {
			msg := fmt.Sprintf("batch %d/%d: %v", batch, total, err)
			report.Remote.Errors = append(report.Remote.Errors, msg)
			o.log(runID, models.LogLevelError, 0, "database import error: "+msg)
			fmt.Fprintf(o.out, "  Failed batch %d/%d\n", batch, total)
			continue
		}
		if res.Rejected > 0 {
			msg := fmt.Sprintf("batch %d/%d: %d rows rejected by schema", batch, total, res.Rejected)
			o.log(runID, models.LogLevelWarn, 0, msg)
			fmt.Fprintf(o.out, "  Inserted batch %d/%d (%d rejected)\n", batch, total, res.Rejected)
			continue
		}
		fmt.Fprintf(o.out, "  Inserted batch %d/%d\n", batch, total)
	}

	rejected := report.Remote.Result.Rejected
	if len(report.Remote.Errors) > 0 || rejected > 0 {
		if len(report.Remote.Errors) > 0 {
			fmt.Fprintf(o.out, "Database import finished with %d failed batches.\n", len(report.Remote.Errors))
		}
		if rejected > 0 {
			fmt.Fprintf(o.out, "Database import skipped %d rows that failed validation.\n", rejected)
		}
		fmt.Fprintln(o.out, "JSON files have been saved for manual import.")
		return
	}
	fmt.Fprintln(o.out, "Database import complete!")
}

func (o *Orchestrator) log(runID uuid.UUID, level models.LogLevel, row int, message string) {
	switch level {
	case models.LogLevelError:
		slog.Error(message, "row", row)
	case models.LogLevelWarn:
		slog.Warn(message, "row", row)
	default:
		slog.Info(message, "row", row)
	}
	if o.history != nil {
		if err := o.history.Log(runID, level, row, message); err != nil {
			slog.Debug("history log failed", "error", err)
		}
	}
}

func rowMessage(row int, err error) string {
	if errors.Is(err, normalize.ErrMissingAddress) {
		return fmt.Sprintf("Row %d: Missing address", row)
	}
	return fmt.Sprintf("Row %d: %v", row, err)
}

// countBy tallies records by key, largest count first, ties by name.
func countBy(props []models.PropertyRecord, key func(models.PropertyRecord) string) []Count {
	counts := make(map[string]int)
	for _, p := range props {
		counts[key(p)]++
	}
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Name < out[j].Name
	})
	return out
}
