// Package backup exports and imports the full record set as a single JSON
// document, so clinicians can move their data between machines.
package backup

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fonotools/avalia/internal/assessment"
)

//go:embed schema.json
var schemaJSON string

// Version of the document layout.
const Version = 1

// Document is the backup file format.
type Document struct {
	Version    int                            `json:"version"`
	ExportedAt time.Time                      `json:"exportedAt"`
	Records    []*assessment.AssessmentRecord `json:"records"`
	Settings   map[string]string              `json:"settings,omitempty"`
}

// ErrInvalidDocument is returned when an import payload fails schema
// validation. Nothing is written in that case.
var ErrInvalidDocument = errors.New("invalid backup document")

// Export serializes every record plus the UI settings.
func Export(ctx context.Context, store assessment.RecordStore) ([]byte, error) {
	records, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	doc := Document{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Records:    records,
	}
	if theme, err := store.GetSetting(ctx, "theme"); err == nil {
		doc.Settings = map[string]string{"theme": theme}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// Import validates the payload against the embedded schema and, only if the
// whole document is valid, saves every record it contains. Existing records
// with the same ID are overwritten. Returns the number of imported records.
func Import(ctx context.Context, store assessment.RecordStore, data []byte) (int, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return 0, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version > Version {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidDocument, doc.Version)
	}

	for _, r := range doc.Records {
		if err := store.Save(ctx, r); err != nil {
			return 0, fmt.Errorf("saving record %s: %w", r.ID, err)
		}
	}
	for key, value := range doc.Settings {
		if err := store.SetSetting(ctx, key, value); err != nil {
			return 0, fmt.Errorf("saving setting %s: %w", key, err)
		}
	}
	return len(doc.Records), nil
}
