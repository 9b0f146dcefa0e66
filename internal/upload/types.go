package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// CategoryKey classifies an uploaded document within a module.
type CategoryKey string

const (
	CategorySpec               CategoryKey = "spec"
	CategoryTestbenchReqs      CategoryKey = "testbench-requirements"
	CategoryFunctionalDesign   CategoryKey = "functional-design"
	CategoryArchitectureDesign CategoryKey = "architecture-design"
	CategoryProtocol           CategoryKey = "protocol"
	CategoryUVM                CategoryKey = "uvm"
	CategoryFormalVerification CategoryKey = "formal-verification"
	CategoryAssertions         CategoryKey = "assertions"
	// CategoryCommunication applies to sub-modules only.
	CategoryCommunication CategoryKey = "communication"
)

var knownCategories = map[CategoryKey]struct{}{
	CategorySpec:               {},
	CategoryTestbenchReqs:      {},
	CategoryFunctionalDesign:   {},
	CategoryArchitectureDesign: {},
	CategoryProtocol:           {},
	CategoryUVM:                {},
	CategoryFormalVerification: {},
	CategoryAssertions:         {},
	CategoryCommunication:      {},
}

// Valid reports whether the key is one of the known categories.
func (k CategoryKey) Valid() bool {
	_, ok := knownCategories[k]
	return ok
}

// FileRef identifies a user-provided file. The identity is the generated ID;
// name, size and byte source are fixed at creation.
type FileRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	// Path is set when the payload lives on disk under the data dir.
	Path string `json:"path,omitempty"`

	data []byte
}

// NewFileRef creates a FileRef backed by an in-memory payload.
func NewFileRef(name string, payload []byte) FileRef {
	return FileRef{
		ID:        uuid.NewString(),
		Name:      name,
		SizeBytes: int64(len(payload)),
		data:      payload,
	}
}

// NewFileRefFromPath creates a FileRef backed by a file already stored on disk.
func NewFileRefFromPath(name, path string, sizeBytes int64) FileRef {
	return FileRef{
		ID:        uuid.NewString(),
		Name:      name,
		SizeBytes: sizeBytes,
		Path:      path,
	}
}

// Open returns a reader over the file's bytes.
func (f FileRef) Open() (io.ReadCloser, error) {
	if f.Path != "" {
		rc, err := os.Open(f.Path) //nolint:gosec // path is recorded by the application
		if err != nil {
			return nil, fmt.Errorf("open payload: %w", err)
		}
		return rc, nil
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Package is a finalized, immutable snapshot of the assembled upload tree.
// Every key in Uploads names either TopModule or an entry of SubModules.
type Package struct {
	TopModule  string                               `json:"top_module"`
	SubModules []string                             `json:"sub_modules"`
	Uploads    map[string]map[CategoryKey][]FileRef `json:"uploads"`
}

// Find returns the FileRef with the given name under (module, category).
func (p *Package) Find(module string, category CategoryKey, name string) (FileRef, bool) {
	for _, ref := range p.Uploads[module][category] {
		if ref.Name == name {
			return ref, true
		}
	}
	return FileRef{}, false
}
