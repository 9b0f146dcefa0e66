package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// TreeBuilder assembles the module/category upload tree incrementally and
// finalizes it into an immutable Package on Build. It is the single writer of
// the persisted current package: a successful Build replaces the stored
// document wholesale.
//
// Uploads are keyed by the module name captured at record time. Shrinking the
// sub-module count keeps entries recorded against removed names; they become
// visible again if the count grows back and the name is reused, and Build
// emits only entries keyed by the finalized module names.
type TreeBuilder struct {
	mu         sync.Mutex
	topModule  string
	subModules []string
	uploads    map[string]map[CategoryKey][]FileRef
	store      PackageStore
}

// NewTreeBuilder creates a builder persisting finalized packages to store.
// The tree starts with a single unnamed sub-module slot.
func NewTreeBuilder(store PackageStore) *TreeBuilder {
	return &TreeBuilder{
		subModules: []string{""},
		uploads:    make(map[string]map[CategoryKey][]FileRef),
		store:      store,
	}
}

// SetTopModule stores the trimmed top module name. An empty name is accepted
// here and reported as a validation error at Build time.
func (b *TreeBuilder) SetTopModule(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topModule = strings.TrimSpace(name)
}

// SetSubModuleCount resizes the ordered sub-module name list to max(1, n),
// preserving existing entries by index and appending empty slots to grow.
func (b *TreeBuilder) SetSubModuleCount(n int) {
	if n < 1 {
		n = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case n < len(b.subModules):
		b.subModules = b.subModules[:n]
	case n > len(b.subModules):
		grown := make([]string, n)
		copy(grown, b.subModules)
		b.subModules = grown
	}
}

// RenameSubModule renames the slot at index in place. Uploads recorded under
// the old name are not migrated; they stay keyed by the name captured at
// record time.
func (b *TreeBuilder) RenameSubModule(index int, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.subModules) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	b.subModules[index] = strings.TrimSpace(name)
	return nil
}

// RecordUpload replaces the file list for the (moduleName, category) pair.
// Unknown category keys are rejected.
func (b *TreeBuilder) RecordUpload(moduleName string, category CategoryKey, files []FileRef) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	byCategory, ok := b.uploads[moduleName]
	if !ok {
		byCategory = make(map[CategoryKey][]FileRef)
		b.uploads[moduleName] = byCategory
	}
	replacement := make([]FileRef, len(files))
	copy(replacement, files)
	byCategory[category] = replacement
	return nil
}

// SubModules returns a copy of the current sub-module name list.
func (b *TreeBuilder) SubModules() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.subModules))
	copy(out, b.subModules)
	return out
}

// Build validates the tree and, on success, finalizes it into a Package and
// atomically replaces the persisted current package. On validation failure it
// returns the full list of field errors and leaves the stored package
// untouched.
func (b *TreeBuilder) Build(ctx context.Context) (*Package, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs ValidationErrors
	if b.topModule == "" {
		errs = append(errs, emptyTopModuleError())
	}
	seen := make(map[string]struct{}, len(b.subModules))
	for i, name := range b.subModules {
		if name == "" {
			errs = append(errs, emptySubModuleError(i))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, duplicateSubModuleError(i, name))
			continue
		}
		seen[name] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	pkg := &Package{
		TopModule:  b.topModule,
		SubModules: append([]string(nil), b.subModules...),
		Uploads:    make(map[string]map[CategoryKey][]FileRef),
	}
	// only entries keyed by a finalized module name make it into the package;
	// orphaned entries stay behind in the builder
	for _, module := range append([]string{b.topModule}, b.subModules...) {
		byCategory, ok := b.uploads[module]
		if !ok {
			continue
		}
		copied := make(map[CategoryKey][]FileRef, len(byCategory))
		for category, files := range byCategory {
			copied[category] = append([]FileRef(nil), files...)
		}
		pkg.Uploads[module] = copied
	}

	if b.store != nil {
		if err := b.store.Save(ctx, pkg); err != nil {
			return nil, fmt.Errorf("persist package: %w", err)
		}
	}
	log.Info().Str("top_module", pkg.TopModule).Int("sub_modules", len(pkg.SubModules)).Msg("upload package finalized")
	return pkg, nil
}
