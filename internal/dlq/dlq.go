package dlq

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrDLQClosed = errors.New("DLQ is closed")
	ErrDLQFull   = errors.New("DLQ is full")
)

// DLQConfig holds configuration for the rejects file
type DLQConfig struct {
	Path    string
	MaxSize int64 // Maximum number of entries, 0 means unlimited
}

// DLQEntry is one skipped input line
type DLQEntry struct {
	Line      int       `json:"line"`
	Raw       string    `json:"raw"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// DeadLetterQueue appends skipped lines to a JSON-lines file so they can be
// inspected after a run. The file is truncated when the queue is opened.
type DeadLetterQueue struct {
	config DLQConfig

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	enc    *json.Encoder
	size   int64
	closed bool

	now func() time.Time
}

// NewDeadLetterQueue creates the rejects file
func NewDeadLetterQueue(config DLQConfig) (*DeadLetterQueue, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("DLQ path is required")
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DLQ directory: %w", err)
		}
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ file: %w", err)
	}

	w := bufio.NewWriter(file)
	return &DeadLetterQueue{
		config: config,
		file:   file,
		w:      w,
		enc:    json.NewEncoder(w),
		now:    time.Now,
	}, nil
}

// Enqueue records a skipped line
func (dlq *DeadLetterQueue) Enqueue(line int, raw, reason string, cause error) error {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	if dlq.closed {
		return ErrDLQClosed
	}

	if dlq.config.MaxSize > 0 && dlq.size >= dlq.config.MaxSize {
		return ErrDLQFull
	}

	entry := DLQEntry{
		Line:      line,
		Raw:       raw,
		Reason:    reason,
		Timestamp: dlq.now(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := dlq.enc.Encode(&entry); err != nil {
		return fmt.Errorf("failed to write DLQ entry: %w", err)
	}
	dlq.size++

	return nil
}

// Size returns the number of entries written
func (dlq *DeadLetterQueue) Size() int64 {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	return dlq.size
}

// Close flushes and closes the rejects file
func (dlq *DeadLetterQueue) Close() error {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	if dlq.closed {
		return nil
	}
	dlq.closed = true

	if err := dlq.w.Flush(); err != nil {
		dlq.file.Close()
		return fmt.Errorf("failed to flush DLQ: %w", err)
	}
	return dlq.file.Close()
}

// ReadEntries loads every entry from a rejects file
func ReadEntries(path string) ([]DLQEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []DLQEntry
	dec := json.NewDecoder(file)
	for dec.More() {
		var entry DLQEntry
		if err := dec.Decode(&entry); err != nil {
			return entries, fmt.Errorf("failed to decode DLQ entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
