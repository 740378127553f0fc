package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"covidcli/internal/config"
)

// utf8BOM makes Excel open the artifact as UTF-8 instead of the locale
// codepage, which matters for location names like Curacao.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV artifacts into the data layout. Relative paths
// are routed to the right artifact directory by prefix, see resolvePath.
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool
}

// WriteCSV writes a whole artifact in one call. Appending skips both
// the BOM and the header row so the existing file stays intact.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("writing csv artifact",
		slog.String("path", fullPath),
		slog.Int("records", len(options.Records)),
		slog.Bool("append", options.Append))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if options.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", fullPath, err)
	}
	defer file.Close()

	if !options.Append {
		if options.BOMPrefix {
			if _, err := file.Write(utf8BOM); err != nil {
				return fmt.Errorf("write BOM: %w", err)
			}
		}
	}

	cw := csv.NewWriter(file)
	defer cw.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := cw.Write(options.Headers); err != nil {
			return fmt.Errorf("write header row: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	return cw.Error()
}

// WriteSimpleCSV writes headers plus records with the Excel BOM.
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// AppendToCSV adds records to the end of an existing artifact.
func (w *CSVWriter) AppendToCSV(filePath string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Records: records,
		Append:  true,
	})
}

// StreamWriter writes one row at a time. The clean dataset export goes
// through here since holding every row in a [][]string doubles memory
// for a file in the hundreds of megabytes.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens the artifact, writes the BOM and header row,
// and hands back a StreamWriter for the rows. Callers must Close it.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	slog.Info("streaming csv artifact",
		slog.String("path", fullPath),
		slog.Int("columns", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", fullPath, err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header row: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: cw}, nil
}

// WriteRecord writes a single row.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered rows and closes the file. The flush error wins
// over the close error since it means rows were lost.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// resolvePath maps a relative artifact name onto the data layout. A
// raw/, analytics/ or cache/ prefix selects that directory; anything
// else lands in processed/, where the cleaned dataset lives.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}

	switch {
	case strings.HasPrefix(filePath, "raw/"):
		return w.paths.GetRawPath(strings.TrimPrefix(filePath, "raw/"))
	case strings.HasPrefix(filePath, "analytics/"):
		return w.paths.GetAnalyticsPath(strings.TrimPrefix(filePath, "analytics/"))
	case strings.HasPrefix(filePath, "cache/"):
		return w.paths.GetCachePath(strings.TrimPrefix(filePath, "cache/"))
	default:
		return w.paths.GetProcessedPath(filePath)
	}
}
