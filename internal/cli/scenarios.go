package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// findScenarioFiles expands args into scenario files. A directory
// contributes every .yaml and .yml file below it; a file is taken as is.
// filter, when set, is a glob matched against file names without their
// extension.
func findScenarioFiles(args []string, filter string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", arg))
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			if filter != "" {
				name := strings.TrimSuffix(filepath.Base(path), ext)
				matched, err := filepath.Match(filter, name)
				if err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
				if !matched {
					return nil
				}
			}

			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// goldenFilePath returns the golden file for a scenario name in dir.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// updateGoldenFile writes trace as the golden file for name.
func updateGoldenFile(dir, name, trace string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenFilePath(dir, name), []byte(trace), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden reports whether trace matches the golden file for
// name. A missing golden file is reported as an error.
func compareWithGolden(dir, name, trace string) (bool, error) {
	golden, err := os.ReadFile(goldenFilePath(dir, name))
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(golden) == trace, nil
}
