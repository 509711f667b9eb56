// Package csvlog writes and reads the per iteration CSV logs of a run.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSVLogger appends rows to a CSV file. Rows are flushed as they are
// written so that a crashed run still leaves readable logs.
type CSVLogger struct {
	mutex  sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateCSVLogger creates dir if needed and opens dir/name.csv. A header is
// written when the file is new.
func CreateCSVLogger(dir, name string, header []string) (*CSVLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name+".csv")
	info, statErr := os.Stat(path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := &CSVLogger{path: path, file: file, writer: csv.NewWriter(file)}
	if statErr != nil || info.Size() == 0 {
		if err := l.WriteRow(header); err != nil {
			file.Close()
			return nil, err
		}
	}
	return l, nil
}

// Path returns the location of the log file
func (l *CSVLogger) Path() string {
	return l.path
}

// WriteRow appends one row
func (l *CSVLogger) WriteRow(row []string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.writer == nil {
		return fmt.Errorf("csv logger %s is closed", l.path)
	}
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes and closes the file. Further writes fail.
func (l *CSVLogger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.writer == nil {
		return nil
	}
	l.writer.Flush()
	l.writer = nil
	return l.file.Close()
}

// ReadCSV reads records from a csv file at given path
func ReadCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return [][]string{}, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return [][]string{}, err
	}
	return records, nil
}

// CSVParsingError describes one malformed row. It never aborts a read.
type CSVParsingError struct {
	Path string
	Row  int
	Err  error
}

func (e *CSVParsingError) Error() string {
	return fmt.Sprintf("%s: row %d: %v", e.Path, e.Row, e.Err)
}

func (e *CSVParsingError) Unwrap() error {
	return e.Err
}

// columnIndex maps header names to positions and checks that every
// required column is present
func columnIndex(header []string, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return index, nil
}
