package output

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tkilaker/newsminer/internal/models"
)

func sampleRecords() []models.ArticleRecord {
	return []models.ArticleRecord{
		{
			Title:            "Bitcoin surges",
			Description:      "bitcoin up 10%",
			PublishedAt:      time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local),
			ImageFile:        "Bitcoin_0.jpeg",
			KeywordCount:     2,
			ContainsMonetary: false,
		},
		{
			Title:            "Price hits $1,200.50",
			PublishedAt:      time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local),
			ImageFile:        models.NoImage,
			ContainsMonetary: true,
		},
	}
}

func TestWriteSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bitcoin.xlsx")

	require.NoError(t, NewLocalFiles().WriteSpreadsheet(sampleRecords(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "date", "description", "picture file", "counter", "contains monetary"}, rows[0])
	assert.Equal(t, []string{"Bitcoin surges", "2024-03-10", "bitcoin up 10%", "Bitcoin_0.jpeg", "2", "FALSE"}, rows[1])
	assert.Equal(t, "-", rows[2][3])
	assert.Equal(t, "TRUE", rows[2][5])
}

func TestZipFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpeg")
	b := filepath.Join(dir, "b.xlsx")
	require.NoError(t, os.WriteFile(a, []byte("img"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("sheet"), 0644))

	dest := filepath.Join(dir, "out", "bundle.zip")
	require.NoError(t, NewLocalFiles().ZipFiles([]string{a, b}, dest))

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.jpeg", "b.xlsx"}, names)
}

func TestZipFiles_MissingInputRemovesZip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "bundle.zip")

	err := NewLocalFiles().ZipFiles([]string{filepath.Join(dir, "missing.jpeg")}, dest)

	assert.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestFileCountAndSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one"), make([]byte, 512*1024), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two"), make([]byte, 512*1024), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	files := NewLocalFiles()

	count, err := files.FileCount(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	size, err := files.SizeMB(dir)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, size, 0.0001)
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.jpeg"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested", "deep"), 0755))

	require.NoError(t, ClearDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, dir)

	missing := filepath.Join(dir, "later")
	require.NoError(t, ClearDir(missing))
	assert.DirExists(t, missing)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Elon Musk", SanitizeName("Elon Musk"))
	assert.Equal(t, "AC_DC", SanitizeName("AC/DC"))
	assert.Equal(t, "a_b", SanitizeName(`a:*?"<>|b`))
	assert.Equal(t, "search", SanitizeName(".."))
	assert.Equal(t, "café", SanitizeName("café"))
}
