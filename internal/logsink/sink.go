// Package logsink batches remote-log entries from mobile clients into one
// append-only file per source tag.
package logsink

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one client-submitted log line.
type Entry struct {
	Source    string
	Level     string
	Message   string
	Timestamp time.Time
}

// Sink writes batches of entries to one append-only file per source tag.
// A single mutex serializes all writers; unknown source tags are dropped
// with a warning rather than written to an unbounded set of files.
type Sink struct {
	mu      sync.Mutex
	dir     string
	files   map[string]*os.File
	sources map[string]bool
}

// New creates a Sink rooted at dir, accepting only the given known source
// tags.
func New(dir string, knownSources []string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	sources := make(map[string]bool, len(knownSources))
	for _, s := range knownSources {
		sources[s] = true
	}
	return &Sink{dir: dir, files: make(map[string]*os.File), sources: sources}, nil
}

// WriteBatch appends every entry to its source's file, flushing once after
// the whole batch. Entries whose source is not in the known set are
// discarded with a warning.
func (s *Sink) WriteBatch(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, e := range entries {
		if !s.sources[e.Source] {
			log.Printf("[LOGSINK] discarding entry for unknown source %q", e.Source)
			continue
		}
		f, err := s.fileFor(e.Source)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log entry for source %q: %w", e.Source, err)
		}
		touched[e.Source] = true
	}

	for source := range touched {
		if err := s.files[source].Sync(); err != nil {
			return fmt.Errorf("flush log file for source %q: %w", source, err)
		}
	}
	return nil
}

func (s *Sink) fileFor(source string) (*os.File, error) {
	if f, ok := s.files[source]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, source+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file for source %q: %w", source, err)
	}
	s.files[source] = f
	return f, nil
}

// Close closes every open source file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
