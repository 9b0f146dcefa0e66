package archive

import (
	"archive/zip"
	"context"
	"io"
	"path/filepath"
	"testing"

	"rtlmate/internal/upload"
)

func buildTestPackage() *upload.Package {
	return &upload.Package{
		TopModule:  "ALU",
		SubModules: []string{"FSM"},
		Uploads: map[string]map[upload.CategoryKey][]upload.FileRef{
			"ALU": {
				upload.CategorySpec: {upload.NewFileRef("alu_spec.md", []byte("alu spec"))},
			},
			"FSM": {
				upload.CategoryCommunication: {upload.NewFileRef("bus.md", []byte("bus notes"))},
			},
		},
	}
}

func readZipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

func TestBuildPackageArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "pkg.zip")
	results, err := BuildPackageArchive(context.Background(), dest, buildTestPackage())
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != "" {
			t.Fatalf("unexpected per-file error: %+v", r)
		}
	}

	entries := readZipEntries(t, dest)
	if entries["ALU/spec/alu_spec.md"] != "alu spec" {
		t.Fatalf("missing top module entry: %v", entries)
	}
	if entries["FSM/communication/bus.md"] != "bus notes" {
		t.Fatalf("missing sub module entry: %v", entries)
	}
}

func TestBuildPackageArchiveRecordsPerFileFailures(t *testing.T) {
	pkg := buildTestPackage()
	// a path-backed ref whose file does not exist fails individually
	pkg.Uploads["ALU"][upload.CategoryAssertions] = []upload.FileRef{
		upload.NewFileRefFromPath("gone.sv", filepath.Join(t.TempDir(), "missing"), 0),
	}

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	results, err := BuildPackageArchive(context.Background(), dest, pkg)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}

	var failed int
	for _, r := range results {
		if r.Err != "" {
			failed++
			if r.Entry != "ALU/assertions/gone.sv" {
				t.Fatalf("unexpected failed entry: %+v", r)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed file, got %d", failed)
	}

	// surviving files still made it into the archive
	entries := readZipEntries(t, dest)
	if _, ok := entries["ALU/spec/alu_spec.md"]; !ok {
		t.Fatalf("surviving entries missing: %v", entries)
	}
	if _, ok := entries["ALU/assertions/gone.sv"]; ok {
		t.Fatalf("failed file must be omitted from the archive")
	}
}

func TestBuildPackageArchiveNilPackage(t *testing.T) {
	if _, err := BuildPackageArchive(context.Background(), filepath.Join(t.TempDir(), "x.zip"), nil); err == nil {
		t.Fatalf("expected error for nil package")
	}
}
