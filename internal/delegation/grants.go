// Package delegation decides whether a caller may act on a mailbox other
// than their own. Grants are explicit and external: a JSON document maps
// each local user id to the target addresses an administrator approved.
// When the document is missing or unreadable, verification fails closed
// and every delegated request is refused.
package delegation

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ferneysalazar/contractorstest-gmail/internal/apperr"
	"github.com/ferneysalazar/contractorstest-gmail/internal/logging"
)

// Registry verifies delegation grants against a JSON file of the shape
// {"<localUserId>": ["target@example.com", ...]}.
type Registry struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewRegistry creates a registry backed by the given file.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{path: path, logger: logger}
}

// Verify returns nil only when localUserID holds an explicit grant for
// targetEmail. Every other outcome, including an absent or unreadable
// grants file, is an authorization failure.
func (r *Registry) Verify(localUserID, targetEmail string) error {
	if localUserID == "" || targetEmail == "" {
		return apperr.New(apperr.KindValidation, "user id and target email are required")
	}

	r.mu.Lock()
	grants, err := r.readAll()
	r.mu.Unlock()
	if err != nil {
		r.logger.Error("delegation grants unavailable, refusing request",
			logging.Err(err))
		return apperr.Wrap(apperr.KindUnauthenticated, err, "delegation verification unavailable")
	}

	for _, allowed := range grants[localUserID] {
		if strings.EqualFold(allowed, targetEmail) {
			return nil
		}
	}
	return apperr.New(apperr.KindUnauthenticated, "no delegation grant for target mailbox")
}

// Grant records a new target for localUserID. Intended for operator
// tooling and tests; the serving path only reads.
func (r *Registry) Grant(localUserID, targetEmail string) error {
	if localUserID == "" || targetEmail == "" {
		return apperr.New(apperr.KindValidation, "user id and target email are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	grants, err := r.readAllOrEmpty()
	if err != nil {
		return err
	}
	for _, existing := range grants[localUserID] {
		if strings.EqualFold(existing, targetEmail) {
			return nil
		}
	}
	grants[localUserID] = append(grants[localUserID], targetEmail)
	return r.writeAll(grants)
}

// writeAll replaces the grants file atomically so a concurrent Verify
// never observes a partial write. Caller holds the mutex.
func (r *Registry) writeAll(grants map[string][]string) error {
	data, err := json.MarshalIndent(grants, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to encode grants")
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to create temp grants file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to write grants file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to close temp grants file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to set grants file mode")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.KindPersistence, err, "failed to replace grants file %s", r.path)
	}
	return nil
}

// readAll fails on any read problem, including a missing file. Fail-closed
// verification depends on that. Caller holds the mutex.
func (r *Registry) readAll() (map[string][]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to read grants file %s", r.path)
	}
	grants := map[string][]string{}
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "corrupt grants file %s", r.path)
	}
	return grants, nil
}

// readAllOrEmpty treats a missing file as an empty registry. Only Grant
// uses this; Verify never does.
func (r *Registry) readAllOrEmpty() (map[string][]string, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	return r.readAll()
}
