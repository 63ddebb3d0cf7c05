package sink

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileWriter writes outcome rows to a JSONL file.
type FileWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates (or truncates) path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating outcome log: %w", err)
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteOutcomes appends one line per row.
func (f *FileWriter) WriteOutcomes(rows []OutcomeRow) error {
	for _, r := range rows {
		if err := f.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	return f.file.Close()
}
