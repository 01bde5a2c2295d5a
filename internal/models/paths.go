// Package models locates classifier model files.
package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model kinds, also used as sub-directory names of the models directory.
const (
	KindCascade = "cascades"
	KindONNX    = "onnx"
)

// DefaultModelsDir is the models directory relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "PANOBLUR_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// KindOf infers the model kind from the file extension.
func KindOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		return KindONNX
	}
	return KindCascade
}

// ResolveModelPath returns the first existing candidate for file: the path as given,
// then <modelsDir>/<kind>/<file>, then <modelsDir>/<file>. When none exists the path
// is returned unchanged so the caller reports the name the user gave.
func ResolveModelPath(modelsDir, file string) string {
	if file == "" {
		return file
	}
	if _, err := os.Stat(file); err == nil || filepath.IsAbs(file) {
		return file
	}
	base := GetModelsDir(modelsDir)
	for _, candidate := range []string{
		filepath.Join(base, KindOf(file), file),
		filepath.Join(base, file),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return file
}

// ValidateModelReadable checks that the model file exists and can be opened.
func ValidateModelReadable(modelPath string) error {
	f, err := os.Open(modelPath) //nolint:gosec // G304: model path comes from configuration
	if err != nil {
		return fmt.Errorf("model file not readable: %s: %w", modelPath, err)
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("model file not readable: %s: %w", modelPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model file not readable: %s is a directory", modelPath)
	}
	return nil
}

// ModelInfo describes a model file found under the models directory.
type ModelInfo struct {
	Name string
	Kind string
	Path string
}

// ListAvailableModels walks the models directory and returns every model file, sorted
// by path. A missing directory yields an empty list.
func ListAvailableModels(modelsDir string) ([]ModelInfo, error) {
	base := GetModelsDir(modelsDir)
	var out []ModelInfo
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		out = append(out, ModelInfo{
			Name: strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Kind: KindOf(path),
			Path: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
