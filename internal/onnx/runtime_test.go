package onnx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryCandidates_EnvFirst(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/custom/libonnxruntime.so")
	c := LibraryCandidates()
	require.NotEmpty(t, c)
	assert.Equal(t, "/custom/libonnxruntime.so", c[0])
}

func TestFindLibrary_Missing(t *testing.T) {
	t.Setenv(EnvLibraryPath, filepath.Join(t.TempDir(), "nope.so"))
	if _, err := FindLibrary(); err == nil {
		t.Skip("a system ONNX Runtime is installed")
	}
}

func TestNewSession_MissingModel(t *testing.T) {
	_, err := NewSession(filepath.Join(t.TempDir(), "missing.onnx"), 0)
	require.Error(t, err)
}
