package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EliminateInputs removes the files in dir whose extension matches ext,
// compared case-insensitively. It returns how many were removed. Removal
// continues past individual failures; their errors are joined.
func EliminateInputs(dir, ext string) (int, error) {
	if ext == "" {
		ext = ".dcm"
	}
	return removeMatching(dir, ext)
}

// EliminateOutputs removes the JPEG images (.jpeg and .jpg) in dir
func EliminateOutputs(dir string) (int, error) {
	return removeMatching(dir, ".jpeg", ".jpg")
}

func removeMatching(dir string, exts ...string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), exts) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func hasExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
