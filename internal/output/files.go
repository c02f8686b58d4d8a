// Package output writes the spreadsheet and zip artifacts of a job and
// enforces the output directory caps.
package output

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tkilaker/newsminer/internal/models"
)

// SheetName is the worksheet holding the records
const SheetName = "Result"

// Header is the first spreadsheet row
var Header = []any{"title", "date", "description", "picture file", "counter", "contains monetary"}

// Files is the file-writing capability used by the bundler
type Files interface {
	WriteSpreadsheet(records []models.ArticleRecord, path string) error
	ZipFiles(paths []string, dest string) error
	FileCount(dir string) (int, error)
	SizeMB(dir string) (float64, error)
	Delete(path string) error
}

// LocalFiles implements Files on the local filesystem
type LocalFiles struct{}

// NewLocalFiles creates the filesystem implementation
func NewLocalFiles() *LocalFiles {
	return &LocalFiles{}
}

// WriteSpreadsheet saves records as an xlsx workbook with a header row
func (LocalFiles) WriteSpreadsheet(records []models.ArticleRecord, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	header := Header
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		row := []any{r.Title, r.Date(), r.Description, r.ImageFile, r.KeywordCount, r.ContainsMonetary}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

// ZipFiles writes the given files, flattened to their base names, into dest
func (LocalFiles) ZipFiles(paths []string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, p := range paths {
		if err := addToZip(zw, p); err != nil {
			zw.Close()
			out.Close()
			os.Remove(dest)
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	return nil
}

// FileCount counts the regular files directly inside dir
func (LocalFiles) FileCount(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	count := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			count++
		}
	}
	return count, nil
}

// SizeMB sums the size of every file below dir in megabytes
func (LocalFiles) SizeMB(dir string) (float64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", dir, err)
	}
	return float64(total) / (1024 * 1024), nil
}

// Delete removes a file; a missing file is not an error
func (LocalFiles) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// ClearDir removes everything inside dir and keeps dir itself
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^-\p{L}\p{N}._ ]+`)

// SanitizeName turns a search phrase into a file name stem
func SanitizeName(phrase string) string {
	name := unsafeName.ReplaceAllString(phrase, "_")
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return "search"
	}
	return name
}
