package storage

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"davos_stays/models"
)

//go:embed schemas/property_row.json
var propertyRowSchema []byte

// Submitter is the narrow contract shared by every remote sink.
type Submitter interface {
	Submit(ctx context.Context, rows []models.PropertyRow) (models.SubmitResult, error)
}

// ValidatingSink drops rows that do not match the remote table schema
// before handing the rest to the wrapped sink.
type ValidatingSink struct {
	next   Submitter
	schema *jsonschema.Schema
}

func NewValidatingSink(next Submitter) (*ValidatingSink, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("property_row.json", bytes.NewReader(propertyRowSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("property_row.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ValidatingSink{next: next, schema: schema}, nil
}

func (v *ValidatingSink) Name() string {
	if n, ok := v.next.(interface{ Name() string }); ok {
		return n.Name() + " (validated)"
	}
	return "validated"
}

// Validate checks a single row against the schema.
func (v *ValidatingSink) Validate(row models.PropertyRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return v.schema.Validate(doc)
}

func (v *ValidatingSink) Submit(ctx context.Context, rows []models.PropertyRow) (models.SubmitResult, error) {
	valid := make([]models.PropertyRow, 0, len(rows))
	rejected := 0
	for _, row := range rows {
		if err := v.Validate(row); err != nil {
			slog.Warn("row rejected by schema", "slug", row.Slug, "error", err)
			rejected++
			continue
		}
		valid = append(valid, row)
	}

	var result models.SubmitResult
	if len(valid) > 0 {
		var err error
		result, err = v.next.Submit(ctx, valid)
		result.Rejected += rejected
		return result, err
	}
	result.Rejected = rejected
	return result, nil
}
