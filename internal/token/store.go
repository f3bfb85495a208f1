package token

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
)

// FileStore persists credential records as a single JSON document mapping
// local-user-id strings to records. Writes replace the whole document via
// a temp file and rename, guarded by a mutex, so concurrent savers in one
// process cannot lose each other's updates or leave a torn file behind.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store backed by the given file. The file does not
// need to exist yet.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Save writes or overwrites the record for localUserID, stamping it with
// the current time. The previous record for the id, if any, is replaced
// wholesale.
func (s *FileStore) Save(localUserID string, set Set) error {
	if localUserID == "" {
		return apperr.New(apperr.KindValidation, "local user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return err
	}
	records[localUserID] = Record{Set: set, CreatedAt: time.Now().UTC()}

	if err := s.writeAll(records); err != nil {
		return err
	}
	s.logger.Debug("saved credential record", "local_user_id", localUserID)
	return nil
}

// Load returns the record for localUserID. A missing record is not an
// error: ok is false and err is nil. err is non-nil only when the backing
// file exists but cannot be read or parsed.
func (s *FileStore) Load(localUserID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[localUserID]
	return rec, ok, nil
}

// Delete removes the record for localUserID. Removing an absent record is
// a no-op.
func (s *FileStore) Delete(localUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := records[localUserID]; !ok {
		return nil
	}
	delete(records, localUserID)
	return s.writeAll(records)
}

// readAll loads the full document. Caller holds the mutex.
func (s *FileStore) readAll() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to read token store %s", s.path)
	}
	if len(data) == 0 {
		return map[string]Record{}, nil
	}

	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "corrupt token store %s", s.path)
	}
	return records, nil
}

// writeAll replaces the full document atomically. Caller holds the mutex.
func (s *FileStore) writeAll(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to encode token store")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to create token store directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to create temp token file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to write token store")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to close temp token file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to set token file mode")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to replace token store %s", s.path)
	}
	return nil
}
