package upload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	fileutil "rtlmate/internal/file"
)

// PackageStore abstracts persistence of the single current package.
// Default implementation is file-based; an in-memory implementation is
// provided for tests and for running without a data dir.
type PackageStore interface {
	// Save replaces the stored package wholesale.
	Save(ctx context.Context, pkg *Package) error
	// Load returns the stored package, or (nil, nil) when none is present.
	// A corrupted document is treated as absent, not as an error.
	Load(ctx context.Context) (*Package, error)
	// Clear removes the stored package. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}

// fileStore keeps the current package as one JSON document under dataDir.
type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) PackageStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) packagePath() string {
	return filepath.Join(s.dataDir, "package.json")
}

func (s *fileStore) Save(ctx context.Context, pkg *Package) error { //nolint:revive // context reserved for future use
	return fileutil.WriteJSONAtomic(s.packagePath(), pkg) //nolint:wrapcheck
}

func (s *fileStore) Load(ctx context.Context) (*Package, error) { //nolint:revive // context reserved for future use
	b, err := os.ReadFile(s.packagePath()) //nolint:gosec // path is controlled by application
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err //nolint:wrapcheck
	}
	var pkg Package
	if err := json.Unmarshal(b, &pkg); err != nil {
		// fail closed: a corrupted document means no package present
		log.Warn().Err(err).Str("path", s.packagePath()).Msg("discarding malformed persisted package")
		return nil, nil
	}
	return &pkg, nil
}

func (s *fileStore) Clear(ctx context.Context) error { //nolint:revive // context reserved for future use
	err := os.Remove(s.packagePath())
	if err != nil && !os.IsNotExist(err) {
		return err //nolint:wrapcheck
	}
	return nil
}

// memoryStore implements PackageStore without touching disk.
type memoryStore struct {
	mu  sync.Mutex
	pkg *Package
}

func NewMemoryStore() PackageStore { //nolint:ireturn
	return &memoryStore{}
}

func (s *memoryStore) Save(_ context.Context, pkg *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkg = pkg
	return nil
}

func (s *memoryStore) Load(_ context.Context) (*Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkg, nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkg = nil
	return nil
}
