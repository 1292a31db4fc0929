package importer

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"davos_stays/models"
)

const maxPrintedErrors = 10

type Count struct {
	Name string
	N    int
}

// Report is the outcome of one import run.
type Report struct {
	RunID            uuid.UUID
	RowsSeen         int
	Blank            int
	Properties       []models.PropertyRecord
	PricingRules     []models.PricingRuleRecord
	Errors           []string
	Duplicates       []string
	ByType           []Count
	ByCity           []Count
	PropertiesPath   string
	PricingRulesPath string
	Remote           RemoteOutcome
}

// RemoteOutcome describes the optional push to the remote table.
type RemoteOutcome struct {
	Attempted bool
	Skipped   string
	Sink      string
	Result    models.SubmitResult
	Errors    []string
}

// Status is the short form stored in the run history.
func (r RemoteOutcome) Status() string {
	switch {
	case !r.Attempted && r.Skipped != "":
		return "skipped: " + r.Skipped
	case !r.Attempted:
		return ""
	case len(r.Errors) > 0 && r.Result.Rejected > 0:
		return fmt.Sprintf("partial: %d inserted, %d rejected, %d failed batches", r.Result.Inserted, r.Result.Rejected, len(r.Errors))
	case len(r.Errors) > 0:
		return fmt.Sprintf("partial: %d inserted, %d failed batches", r.Result.Inserted, len(r.Errors))
	case r.Result.Rejected > 0:
		return fmt.Sprintf("partial: %d inserted, %d rejected", r.Result.Inserted, r.Result.Rejected)
	default:
		return fmt.Sprintf("ok: %d inserted", r.Result.Inserted)
	}
}

func PrintSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\n%s\nImport Summary\n%s\n", rule, rule)
	fmt.Fprintf(w, "Total properties: %d\n", len(r.Properties))
	fmt.Fprintf(w, "With pricing: %d\n", len(r.PricingRules))
	fmt.Fprintf(w, "Errors: %d\n", len(r.Errors))

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for i, err := range r.Errors {
			if i == maxPrintedErrors {
				fmt.Fprintf(w, "  ... and %d more\n", len(r.Errors)-maxPrintedErrors)
				break
			}
			fmt.Fprintf(w, "  - %s\n", err)
		}
	}

	if len(r.Duplicates) > 0 {
		fmt.Fprintf(w, "\nPossible duplicates: %d\n", len(r.Duplicates))
		for _, d := range r.Duplicates {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}

	fmt.Fprintln(w, "\nProperty types:")
	for _, c := range r.ByType {
		fmt.Fprintf(w, "  - %s: %d\n", c.Name, c.N)
	}

	fmt.Fprintln(w, "\nCities:")
	for _, c := range r.ByCity {
		fmt.Fprintf(w, "  - %s: %d\n", c.Name, c.N)
	}
}

const rule = "=================================================="
