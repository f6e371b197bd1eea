package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/theimaginaryfoundation/thread-digest/digest/fileutils"
)

// File names inside the analysis data directory.
const (
	CheckpointFileName = "progress.json"
	OutputFileName     = "articles.json"
	LockFileName       = "progress.lock"
)

// ErrCommitOutput marks a failed final commit, the only failure that is fatal to a job.
var ErrCommitOutput = errors.New("commit output")

// Store owns the checkpoint and output files of one analysis data directory. Writes are serialized.
type Store struct {
	dir    string
	pretty bool
	logger *slog.Logger
	now    func() time.Time

	// rename is the final step of atomic writes; nil means os.Rename.
	rename fileutils.RenameFunc

	mu sync.Mutex
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithPrettyOutput indents the written JSON files.
func WithPrettyOutput(pretty bool) StoreOption {
	return func(s *Store) { s.pretty = pretty }
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithStoreClock overrides time.Now for checkpoint timestamps.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(dir string, options ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New("NewStore: dir is empty")
	}
	s := &Store{dir: filepath.Clean(dir), now: time.Now}
	for _, o := range options {
		o(s)
	}
	s.logger = loggerOrDefault(s.logger)
	return s, nil
}

func (s *Store) Dir() string            { return s.dir }
func (s *Store) CheckpointPath() string { return filepath.Join(s.dir, CheckpointFileName) }
func (s *Store) OutputPath() string     { return filepath.Join(s.dir, OutputFileName) }
func (s *Store) LockPath() string       { return filepath.Join(s.dir, LockFileName) }

// SaveCheckpoint replaces progress.json with records. Callers treat failures as non-fatal: a lost
// checkpoint only costs re-work.
func (s *Store) SaveCheckpoint(records []AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := Checkpoint{
		Records:   nonNilRecords(records),
		Timestamp: epochMillis(s.now()),
	}
	if err := fileutils.WriteJSONFileAtomicWith(s.CheckpointPath(), cp, s.pretty, s.rename); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpointed records. A missing, unreadable or corrupt checkpoint yields
// an empty list. Duplicate thread ids keep their first record.
func (s *Store) LoadCheckpoint() []AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.CheckpointPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("checkpoint unreadable; starting fresh", "path", s.CheckpointPath(), "error", err)
		}
		return []AnalysisRecord{}
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		s.logger.Warn("checkpoint corrupt; starting fresh", "path", s.CheckpointPath(), "error", err)
		return []AnalysisRecord{}
	}
	return dedupeRecords(cp.Records)
}

// DeleteCheckpoint removes progress.json. A missing checkpoint is not an error.
func (s *Store) DeleteCheckpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fileutils.RemoveIfExists(s.CheckpointPath())
}

// CommitOutput atomically replaces articles.json: readers see the previous file or the new one, never a
// partial write. On failure the temp file is removed and the error wraps ErrCommitOutput.
func (s *Store) CommitOutput(batch BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch.Records = nonNilRecords(batch.Records)
	if err := fileutils.WriteJSONFileAtomicWith(s.OutputPath(), batch, s.pretty, s.rename); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommitOutput, s.OutputPath(), err)
	}
	return nil
}

// LoadOutput reads a committed articles.json.
func (s *Store) LoadOutput() (BatchResult, error) {
	b, err := os.ReadFile(s.OutputPath())
	if err != nil {
		return BatchResult{}, fmt.Errorf("read output: %w", err)
	}
	var out BatchResult
	if err := json.Unmarshal(b, &out); err != nil {
		return BatchResult{}, fmt.Errorf("unmarshal output: %w", err)
	}
	return out, nil
}

func nonNilRecords(in []AnalysisRecord) []AnalysisRecord {
	if in == nil {
		return []AnalysisRecord{}
	}
	return in
}

func dedupeRecords(in []AnalysisRecord) []AnalysisRecord {
	out := make([]AnalysisRecord, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	for _, r := range in {
		if _, ok := seen[r.ThreadID]; ok {
			continue
		}
		seen[r.ThreadID] = struct{}{}
		out = append(out, r)
	}
	return out
}
