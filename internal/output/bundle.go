package output

import (
	"fmt"
	"path/filepath"

	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/models"
)

// Limits caps the output directory
type Limits struct {
	MaxFiles int
	MaxMB    float64
}

// DefaultLimits allows 50 files and 20 MB
func DefaultLimits() Limits {
	return Limits{MaxFiles: 50, MaxMB: 20}
}

// Bundler writes a job's artifacts into the temp and output directories
type Bundler struct {
	files     Files
	tempDir   string
	outputDir string
	limits    Limits
}

// NewBundler creates a bundler over the given directories
func NewBundler(files Files, tempDir, outputDir string, limits Limits) *Bundler {
	return &Bundler{
		files:     files,
		tempDir:   tempDir,
		outputDir: outputDir,
		limits:    limits,
	}
}

// TempDir returns where images and the spreadsheet are staged
func (b *Bundler) TempDir() string {
	return b.tempDir
}

// ImagePath returns the staging path of a record image
func (b *Bundler) ImagePath(fileName string) string {
	return filepath.Join(b.tempDir, fileName)
}

// WriteSpreadsheet stages the records as <stem>.xlsx and returns its path
func (b *Bundler) WriteSpreadsheet(records []models.ArticleRecord, stem string) (string, error) {
	path := filepath.Join(b.tempDir, stem+".xlsx")
	if err := b.files.WriteSpreadsheet(records, path); err != nil {
		return "", err
	}
	return path, nil
}

// Bundle zips the spreadsheet with every downloaded image into
// <output>/<stem>.zip. When the output directory then exceeds a cap the zip
// is removed again and a business failure is returned.
func (b *Bundler) Bundle(records []models.ArticleRecord, stem, spreadsheet string) (string, error) {
	var paths []string
	for _, r := range records {
		if r.HasImage() {
			paths = append(paths, b.ImagePath(r.ImageFile))
		}
	}
	paths = append(paths, spreadsheet)

	zipPath := filepath.Join(b.outputDir, stem+".zip")
	if err := b.files.ZipFiles(paths, zipPath); err != nil {
		return "", fmt.Errorf("failed to create zip: %w", err)
	}

	count, err := b.files.FileCount(b.outputDir)
	if err != nil {
		return "", err
	}
	if count > b.limits.MaxFiles {
		if err := b.files.Delete(zipPath); err != nil {
			return "", err
		}
		return "", failure.Businessf("total number of files exceeds the maximum allowed limit of %d", b.limits.MaxFiles)
	}

	size, err := b.files.SizeMB(b.outputDir)
	if err != nil {
		return "", err
	}
	if size > b.limits.MaxMB {
		if err := b.files.Delete(zipPath); err != nil {
			return "", err
		}
		return "", failure.Businessf("size of %s.zip exceeds the maximum allowed limit of %g megabytes", stem, b.limits.MaxMB)
	}

	return zipPath, nil
}
