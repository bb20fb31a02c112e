package addressbase

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LandRegistry/address-search-api/internal/index"
)

func writeArchive(t *testing.T, path string, members map[string][][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, rows := range members {
		member, err := w.Create(name)
		require.NoError(t, err)
		_, err = io.Copy(member, csvInput(rows...))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestRunZipDirImportsEveryCSVMember(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "AB76GB")
	require.NoError(t, os.Mkdir(sub, 0o755))

	writeArchive(t, filepath.Join(sub, "exeter.zip"), map[string][][]string{
		"exeter.csv": {headerRow(), dpaRow("1", "I")},
		"notes.txt":  {{"ignored"}},
	})
	writeArchive(t, filepath.Join(dir, "plymouth.zip"), map[string][][]string{
		"plymouth.csv": {headerRow(), dpaRow("2", "I")},
	})

	importer, store := newTestImporter(t)
	require.NoError(t, importer.RunZipDir(context.Background(), dir))

	assert.Equal(t, 2, store.Count(index.ViewPostcode))
}

func TestRunZipDirReportsFailedArchives(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "good.zip"), map[string][][]string{
		"good.csv": {headerRow(), dpaRow("1", "I")},
	})
	writeArchive(t, filepath.Join(dir, "bad.zip"), map[string][][]string{
		"bad.csv": {dpaRow("2", "I")}, // missing header
	})

	importer, store := newTestImporter(t)
	err := importer.RunZipDir(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "1 of 2 archives"))

	// The good archive still imported.
	assert.Equal(t, 1, store.Count(index.ViewPostcode))
}

func TestRunZipDirWithoutArchives(t *testing.T) {
	importer, _ := newTestImporter(t)
	err := importer.RunZipDir(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no zip archives")
}
