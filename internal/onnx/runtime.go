// Package onnx locates and initialises the ONNX Runtime shared library and wraps the
// session plumbing used by ONNX-backed classifiers.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the shared library lookup.
const EnvLibraryPath = "PANOBLUR_ONNXRUNTIME_LIB"

var systemLibraryPaths = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
}

// libraryName returns the platform file name of the runtime library.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// LibraryCandidates lists the paths probed for the runtime library, in order.
func LibraryCandidates() []string {
	var out []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		out = append(out, p)
	}
	out = append(out, systemLibraryPaths...)
	if root, err := findProjectRoot(); err == nil {
		if name, err := libraryName(); err == nil {
			out = append(out, filepath.Join(root, "onnxruntime", "lib", name))
		}
	}
	return out
}

// FindLibrary returns the first existing runtime library.
func FindLibrary() (string, error) {
	candidates := LibraryCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (tried %d locations)", len(candidates))
}

var (
	initOnce sync.Once
	errInit  error
)

// Init points onnxruntime_go at the shared library and initialises the environment
// once per process.
func Init() error {
	initOnce.Do(func() {
		if onnxruntime_go.IsInitialized() {
			return
		}
		path, err := FindLibrary()
		if err != nil {
			errInit = err
			return
		}
		onnxruntime_go.SetSharedLibraryPath(path)
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			errInit = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	})
	return errInit
}
