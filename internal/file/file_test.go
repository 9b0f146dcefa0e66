package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONAtomicReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	if err := WriteJSONAtomic(path, map[string]string{"v": "one"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteJSONAtomic(path, map[string]string{"v": "two"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["v"] != "two" {
		t.Fatalf("expected wholesale replacement, got %v", doc)
	}

	// no temp leftovers
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCopyAtomicCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "payload.bin")
	if err := CopyAtomic(path, strings.NewReader("bytes")); err != nil {
		t.Fatalf("copy: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "bytes" {
		t.Fatalf("unexpected contents %q, err=%v", data, err)
	}
}

func TestEmptyArgumentsRejected(t *testing.T) {
	if err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if err := WriteJSONAtomic("", nil); err == nil {
		t.Fatalf("expected error for empty filename")
	}
	if err := CopyAtomic("", strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty filename")
	}
}
