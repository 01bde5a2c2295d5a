package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/panoblur/internal/utils"
)

// discoverImageFiles finds all image files matching the given patterns. Explicit file
// arguments are kept in order, directory contents are sorted.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			imageFiles = append(imageFiles, arg)
		}
	}

	return imageFiles, nil
}

// discoverInDirectory walks dir for supported images, descending only when recursive.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if a file's base name matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
