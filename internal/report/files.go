package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnsureDir validates the output location before any graph work is done:
// missing directories are created, and a pre-existing non-directory is an
// error.
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("output path %s exists and is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteCSVFiles writes one scandate-prefixed CSV per table and returns the
// paths written.
func (r *Report) WriteCSVFiles(dir string) ([]string, error) {
	written := make([]string, 0, 3)
	for _, t := range r.tables() {
		name := fmt.Sprintf("%s_GoodHound_%s.csv", r.ScanDate, t.Slug)
		path := avoidCollision(filepath.Join(dir, name))
		if err := writeCSV(path, t); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCSV(path string, t table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// avoidCollision keeps an earlier report from being overwritten by
// suffixing the file stem with a minute-resolution timestamp.
func avoidCollision(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "-" + time.Now().Format("2006-01-02-15-04") + ext
}
