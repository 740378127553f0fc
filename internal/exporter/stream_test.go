package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_CreateStreamWriter(t *testing.T) {
	writer, paths := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		headers  []string
		validate func(t *testing.T, stream *StreamWriter, filePath string)
	}{
		{
			name:     "create stream with headers",
			filePath: "stream_test.csv",
			headers:  []string{"location", "date", "new_cases"},
			validate: func(t *testing.T, stream *StreamWriter, filePath string) {
				assert.NotNil(t, stream)
				assert.NotNil(t, stream.file)
				assert.NotNil(t, stream.writer)

				// Flush the writer to ensure headers are written
				stream.writer.Flush()

				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				// Check BOM
				assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

				// Check headers
				contentWithoutBOM := content[3:]
				lines := strings.Split(strings.TrimSpace(string(contentWithoutBOM)), "\n")
				assert.Len(t, lines, 1) // Only headers at this point
				assert.Equal(t, "location,date,new_cases", lines[0])
			},
		},
		{
			name:     "create stream without headers",
			filePath: "stream_no_headers.csv",
			headers:  nil,
			validate: func(t *testing.T, stream *StreamWriter, filePath string) {
				assert.NotNil(t, stream)

				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				// Should only have BOM, no content yet
				assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, content)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := writer.CreateStreamWriter(tt.filePath, tt.headers)
			assert.NoError(t, err)
			require.NotNil(t, stream)
			defer stream.Close()

			tt.validate(t, stream, paths.GetProcessedPath(tt.filePath))
		})
	}
}

func TestStreamWriter_WriteRecord(t *testing.T) {
	writer, paths := setupTestEnv(t)

	headers := []string{"location", "date", "new_cases"}
	stream, err := writer.CreateStreamWriter("stream_records.csv", headers)
	require.NoError(t, err)

	records := [][]string{
		{"Germany", "2021-11-24", "66884"},
		{"Germany", "2021-11-25", "75961"},
		{"Germany", "2021-11-26", "76414"},
	}
	for _, record := range records {
		require.NoError(t, stream.WriteRecord(record))
	}
	require.NoError(t, stream.Close())

	// Read back through a CSV reader
	file, err := os.Open(paths.GetProcessedPath("stream_records.csv"))
	require.NoError(t, err)
	defer file.Close()

	bom := make([]byte, 3)
	_, err = file.Read(bom)
	require.NoError(t, err)

	reader := csv.NewReader(file)
	all, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Len(t, all, 4) // header + 3 records
	assert.Equal(t, headers, all[0])
	assert.Equal(t, records[0], all[1])
	assert.Equal(t, records[2], all[3])
}

func TestStreamWriter_Close(t *testing.T) {
	writer, paths := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("stream_close.csv", []string{"a", "b"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"1", "2"}))
	require.NoError(t, stream.Close())

	// Everything buffered must be flushed on close
	content, err := os.ReadFile(paths.GetProcessedPath("stream_close.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "1,2")
}
