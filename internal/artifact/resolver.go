package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	fileutil "rtlmate/internal/file"
	"rtlmate/internal/upload"
)

// Handle is an ephemeral, dereferenceable reference to a FileRef's bytes,
// materialized as a file under the resolver's directory. It stays valid until
// revoked.
type Handle struct {
	ID     string
	Path   string
	Source upload.FileRef
}

// Resolver turns FileRefs into Handles for view/download actions. Resolving
// the same FileRef again returns the cached handle, so repeated renders do not
// grow the handle set. The resolver never revokes on its own; whoever last
// displays a handle revokes it.
type Resolver struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Handle // keyed by FileRef.ID
}

// NewResolver creates a resolver materializing handles under dir.
func NewResolver(dir string) *Resolver {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "rtlmate-artifacts")
	}
	return &Resolver{
		dir:   dir,
		cache: make(map[string]*Handle),
	}
}

// Resolve returns a dereferenceable handle for the FileRef, creating it on
// first use and reusing the cached one afterwards.
func (r *Resolver) Resolve(ref upload.FileRef) (*Handle, error) {
	r.mu.Lock()
	if h, ok := r.cache[ref.ID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	src, err := ref.Open()
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref.Name, err)
	}
	defer func() { _ = src.Close() }()

	handleID := uuid.NewString()
	path := filepath.Join(r.dir, handleID)
	if err := fileutil.CopyAtomic(path, src); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref.Name, err)
	}

	h := &Handle{ID: handleID, Path: path, Source: ref}
	r.mu.Lock()
	// another Resolve for the same ref may have won the race
	if existing, ok := r.cache[ref.ID]; ok {
		r.mu.Unlock()
		_ = os.Remove(path)
		return existing, nil
	}
	r.cache[ref.ID] = h
	r.mu.Unlock()
	return h, nil
}

// Revoke releases the handle's backing file. Revoking an already-revoked or
// unknown handle is a no-op.
func (r *Resolver) Revoke(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	cached, ok := r.cache[h.Source.ID]
	if !ok || cached.ID != h.ID {
		r.mu.Unlock()
		return
	}
	delete(r.cache, h.Source.ID)
	r.mu.Unlock()

	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", h.Path).Msg("revoke artifact failed")
	}
}

// RevokeAll releases every live handle. Used on shutdown.
func (r *Resolver) RevokeAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.cache))
	for _, h := range r.cache {
		handles = append(handles, h)
	}
	r.cache = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", h.Path).Msg("revoke artifact failed")
		}
	}
}
