package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// IsDatasetFile reports whether name has a dataset file extension.
func IsDatasetFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Files expands paths into the dataset files they denote. Directories are
// walked recursively; explicit files are kept regardless of extension.
// The result is sorted and free of duplicates.
func Files(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !IsDatasetFile(d.Name()) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// LoadDir reads every dataset file under dir.
func LoadDir(dir string) ([]*Dataset, error) {
	return Load(dir)
}

// Load reads the datasets of the given files and directories. Two files
// declaring the same dataset name are rejected.
func Load(paths ...string) ([]*Dataset, error) {
	files, err := Files(paths...)
	if err != nil {
		return nil, err
	}

	datasets := make([]*Dataset, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		ds, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[ds.Name]; ok {
			return nil, &DatasetParseError{
				File:    f,
				Message: fmt.Sprintf("dataset %q already defined in %s", ds.Name, prev),
			}
		}
		seen[ds.Name] = f
		datasets = append(datasets, ds)
	}
	return datasets, nil
}
