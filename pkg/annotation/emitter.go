// Package annotation collects the ground-truth records of a generation run
// and writes them once, as a single JSON array, when the run ends.
package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/cardsynth/pkg/types"
)

// Emitter accumulates annotations in insertion order. It is not safe for
// concurrent use; a run owns exactly one Emitter.
type Emitter struct {
	records []types.Annotation
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{records: []types.Annotation{}}
}

// Add appends one record.
func (e *Emitter) Add(filename, cardName string, corners types.Corners) {
	e.records = append(e.records, types.Annotation{
		Filename: filename,
		CardName: cardName,
		Corners:  corners,
	})
}

// Len returns the number of accumulated records.
func (e *Emitter) Len() int {
	return len(e.records)
}

// Records returns a copy of the accumulated records.
func (e *Emitter) Records() []types.Annotation {
	out := make([]types.Annotation, len(e.records))
	copy(out, e.records)
	return out
}

// Marshal encodes all records as an indented JSON array.
func (e *Emitter) Marshal() ([]byte, error) {
	return json.MarshalIndent(e.records, "", "  ")
}

// WriteFile writes all records to path, creating the parent directory if needed.
func (e *Emitter) WriteFile(path string) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create annotation directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write annotations %q: %w", path, err)
	}
	return nil
}

// ReadFile parses an annotation file written by WriteFile.
func ReadFile(path string) ([]types.Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []types.Annotation
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse annotations from %q: %w", path, err)
	}
	return records, nil
}
