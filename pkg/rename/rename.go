// Package rename adds a file extension to every file in a directory.
package rename

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/exploopio/ropstat/pkg/core"
	"github.com/exploopio/ropstat/pkg/errors"
)

// Result lists the renames performed, as old and new base names.
type Result struct {
	Renamed [][2]string `json:"renamed"`
}

// AddExtension renames every regular file directly inside dir to
// <name>.<ext>. Paths are resolved inside dir, not the working directory.
// A leading period on ext is tolerated. Directories and other non-regular
// entries are left alone.
func AddExtension(dir, ext string, logger core.Logger) (*Result, error) {
	const op = "rename.AddExtension"
	logger = core.OrNop(logger)

	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "extension is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.InputNotFound(op, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := &Result{}
	for _, name := range names {
		target := name + "." + ext
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, target)); err != nil {
			return result, errors.E(errors.KindInternal, op, errors.At(filepath.Join(dir, name), 0), "rename", err)
		}
		logger.Debug("Renamed %s to %s", name, target)
		result.Renamed = append(result.Renamed, [2]string{name, target})
	}
	return result, nil
}
