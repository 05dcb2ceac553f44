package deploy

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipInArchive reports whether a path component is left out of the artifact.
func skipInArchive(name string) bool {
	return name == "node_modules" || name == ProjectConfigFile || strings.HasPrefix(name, ".")
}

// ZipDir writes a zip of every regular file under src to w, with slash-separated
// paths relative to src in sorted order. Dotfiles, node_modules and dehost.yaml
// are skipped. It returns the number of files written.
func ZipDir(src string, w io.Writer) (int, error) {
	var files []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != src && skipInArchive(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", src, err)
	}
	sort.Strings(files)

	zw := zip.NewWriter(w)
	for _, path := range files {
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return 0, err
		}
		if err := addZipFile(zw, path, filepath.ToSlash(rel)); err != nil {
			zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	return len(files), nil
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
