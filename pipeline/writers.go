package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OutputWriter defines the interface for data output.
type OutputWriter[T any] interface {
	Write(items []T) error
	Close() error
	Validate() error
}

// ErrOutput indicates an output file could not be created or written.
type ErrOutput struct {
	Path string
	Err  error
}

func (e ErrOutput) Error() string {
	return fmt.Errorf("output %s: %w", e.Path, e.Err).Error()
}

func (e ErrOutput) Unwrap() error {
	return e.Err
}

// CSVWriter writes records to CSV.
type CSVWriter[T any] struct {
	path   string
	file   *os.File
	writer *csv.Writer
	row    func(T) []string
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter[T any](filename string, header []string, row func(T) []string) (*CSVWriter[T], error) {
	if err := ensureDir(filename); err != nil {
		return nil, ErrOutput{Path: filename, Err: err}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, ErrOutput{Path: filename, Err: fmt.Errorf("create csv file: %w", err)}
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, ErrOutput{Path: filename, Err: fmt.Errorf("write csv header: %w", err)}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, ErrOutput{Path: filename, Err: fmt.Errorf("flush csv header: %w", err)}
	}

	return &CSVWriter[T]{
		path:   filename,
		file:   f,
		writer: writer,
		row:    row,
	}, nil
}

// Write appends items to the CSV output.
func (cw *CSVWriter[T]) Write(items []T) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, item := range items {
		if err := cw.writer.Write(cw.row(item)); err != nil {
			return ErrOutput{Path: cw.path, Err: fmt.Errorf("write csv record: %w", err)}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return ErrOutput{Path: cw.path, Err: fmt.Errorf("flush csv records: %w", err)}
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter[T]) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return ErrOutput{Path: cw.path, Err: fmt.Errorf("flush csv writer: %w", err)}
	}
	if err := cw.file.Close(); err != nil {
		return ErrOutput{Path: cw.path, Err: err}
	}
	return nil
}

// Validate ensures the file holds at least the header row.
func (cw *CSVWriter[T]) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter[T any] struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	written int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter[T any](filename string) (*JSONWriter[T], error) {
	if err := ensureDir(filename); err != nil {
		return nil, ErrOutput{Path: filename, Err: err}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, ErrOutput{Path: filename, Err: fmt.Errorf("create json file: %w", err)}
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter[T]{
		path:    filename,
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends items in JSONL format.
func (jw *JSONWriter[T]) Write(items []T) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, item := range items {
		if err := jw.encoder.Encode(item); err != nil {
			return ErrOutput{Path: jw.path, Err: fmt.Errorf("encode json record: %w", err)}
		}
		jw.written++
	}

	if err := jw.writer.Flush(); err != nil {
		return ErrOutput{Path: jw.path, Err: fmt.Errorf("flush json writer: %w", err)}
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter[T]) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return ErrOutput{Path: jw.path, Err: fmt.Errorf("flush json writer: %w", err)}
	}
	if err := jw.file.Close(); err != nil {
		return ErrOutput{Path: jw.path, Err: err}
	}
	return nil
}

// Validate ensures records written so far reached the file.
func (jw *JSONWriter[T]) Validate() error {
	jw.mu.Lock()
	written := jw.written
	jw.mu.Unlock()

	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if written > 0 && info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
