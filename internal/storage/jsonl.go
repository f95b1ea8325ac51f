package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bundleKeeper/internal/model"
)

// JsonlJournal appends journal entries to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path, now: time.Now}
}

// PutSubmissions appends one line per submission result.
func (s *JsonlJournal) PutSubmissions(_ context.Context, run string, results []model.SubmissionResult) error {
	if len(results) == 0 {
		return nil
	}
	at := s.now().UTC()
	entries := make([]Entry, len(results))
	for i := range results {
		r := results[i]
		entries[i] = Entry{Kind: KindSubmission, Run: run, RecordedAt: at, Submission: &r}
	}
	return s.append(entries)
}

// PutBundle appends a bundle creation record.
func (s *JsonlJournal) PutBundle(_ context.Context, bundle model.BundleRecord) error {
	return s.append([]Entry{{Kind: KindBundle, RecordedAt: s.now().UTC(), Bundle: &bundle}})
}

func (s *JsonlJournal) append(entries []Entry) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write journal entry: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadJournal returns every entry in the file at path, or nothing when the
// file does not exist.
func ReadJournal(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("parse journal line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}
