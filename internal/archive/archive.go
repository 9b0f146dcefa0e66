package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"rtlmate/internal/upload"
)

const archiveDirPerm os.FileMode = 0o750

// Result describes the outcome of writing a single package file into the zip.
type Result struct {
	Entry string
	Err   string
}

// BuildPackageArchive writes every file of the package into a zip at
// destZipPath, one entry per FileRef at module/category/name. It always
// returns one Result per file; failed files are recorded and omitted from the
// archive rather than aborting the build.
func BuildPackageArchive(ctx context.Context, destZipPath string, pkg *upload.Package) ([]Result, error) {
	if pkg == nil {
		return nil, errors.New("no package")
	}

	zipFile, err := createFile(destZipPath)
	if err != nil {
		return nil, err
	}
	zipWriter := zip.NewWriter(zipFile)

	var results []Result
	for _, module := range orderedModules(pkg) {
		byCategory := pkg.Uploads[module]
		for _, category := range orderedCategories(byCategory) {
			for _, ref := range byCategory[category] {
				if ctx.Err() != nil {
					_ = zipWriter.Close()
					_ = zipFile.Close()
					return results, fmt.Errorf("archive cancelled: %w", ctx.Err())
				}
				results = append(results, writeEntry(zipWriter, module, category, ref))
			}
		}
	}

	if err := zipWriter.Close(); err != nil {
		_ = zipFile.Close()
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return results, fmt.Errorf("close zip file: %w", err)
	}
	return results, nil
}

// writeEntry copies one FileRef into the zip under module/category/name.
func writeEntry(zipWriter *zip.Writer, module string, category upload.CategoryKey, ref upload.FileRef) Result {
	entry := module + "/" + string(category) + "/" + ref.Name
	result := Result{Entry: entry}

	src, err := ref.Open()
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("entry", entry).Err(err).Msg("open package file failed")
		return result
	}
	defer func() { _ = src.Close() }()

	entryWriter, err := zipWriter.Create(entry)
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("entry", entry).Err(err).Msg("zip entry create failed")
		return result
	}
	if _, err := io.Copy(entryWriter, src); err != nil {
		result.Err = err.Error()
		log.Warn().Str("entry", entry).Err(err).Msg("copy into zip failed")
		return result
	}
	return result
}

// orderedModules lists the package's modules top-first for stable archives.
func orderedModules(pkg *upload.Package) []string {
	modules := make([]string, 0, len(pkg.Uploads))
	if _, ok := pkg.Uploads[pkg.TopModule]; ok {
		modules = append(modules, pkg.TopModule)
	}
	for _, sub := range pkg.SubModules {
		if _, ok := pkg.Uploads[sub]; ok {
			modules = append(modules, sub)
		}
	}
	return modules
}

func orderedCategories(byCategory map[upload.CategoryKey][]upload.FileRef) []upload.CategoryKey {
	categories := make([]upload.CategoryKey, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// createFile creates or truncates the destination file, ensuring the parent dir exists.
func createFile(destinationPath string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(destinationPath), archiveDirPerm); err != nil { //nolint:gosec // app-owned path
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	outputFile, err := os.Create(destinationPath) //nolint:gosec // path is constructed by the application
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return outputFile, nil
}
