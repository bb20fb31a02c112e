package addressbase

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RunZipDir walks one level of subdirectories under dir, finds every zip
// archive, and imports each CSV member as its own run (each change file
// carries its own header). Runs that fail are counted and reported in
// aggregate; one bad file does not stop the walk.
func (i *Importer) RunZipDir(ctx context.Context, dir string) error {
	archives, err := findArchives(dir)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		return fmt.Errorf("no zip archives found under %s", dir)
	}

	var failed int
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.runArchive(ctx, archive); err != nil {
			failed++
			i.logger.Error("archive import failed", "archive", archive, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed to import", failed, len(archives))
	}
	return nil
}

func (i *Importer) runArchive(ctx context.Context, path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var failed int
	for _, member := range r.File {
		if !strings.EqualFold(filepath.Ext(member.Name), ".csv") {
			continue
		}
		i.logger.Info("importing change file", "archive", path, "member", member.Name)
		rc, err := member.Open()
		if err != nil {
			return fmt.Errorf("open member %s: %w", member.Name, err)
		}
		_, err = i.Run(ctx, rc)
		rc.Close()
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d change files failed", failed)
	}
	return nil
}

// findArchives collects zip files directly under dir and one directory level
// below it, matching the layout of an unpacked AddressBase delivery.
func findArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			if strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
				archives = append(archives, path)
			}
			continue
		}
		inner, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		for _, e := range inner {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
				archives = append(archives, filepath.Join(path, e.Name()))
			}
		}
	}
	return archives, nil
}
