package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirError is returned when a scenarios directory cannot be used.
type ScenarioDirError struct {
	Dir string
	Err error
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return fmt.Sprintf("scenarios directory %q: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ScenarioDirError) Unwrap() error {
	return e.Err
}

// FindScenarios returns the YAML scenario files under dir, sorted.
// Files in golden/ directories are skipped. A non-empty filter is a glob
// matched against the file name without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScenarioDirError{Dir: dir, Err: fmt.Errorf("not a directory")}
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// GoldenPath returns the golden file for a scenario file: a golden/
// directory next to it holding <name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}
