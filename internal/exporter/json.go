package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONWriter writes indented JSON artifacts. Output is deterministic
// for a given value (encoding/json sorts map keys), so repeated runs
// over unchanged data produce byte-identical files.
type JSONWriter struct{}

// NewJSONWriter creates a new JSON artifact writer
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

// WriteJSON marshals v with two-space indentation and writes it to path
func (w *JSONWriter) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	slog.Info("Writing JSON file",
		slog.String("path", path),
		slog.Int("bytes", len(data)))

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadJSON loads a JSON artifact back into v
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}
