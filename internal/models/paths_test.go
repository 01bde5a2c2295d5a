package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestGetModelsDir_Priority(t *testing.T) {
	t.Setenv(EnvModelsDir, "/env/models")
	assert.Equal(t, "/explicit", GetModelsDir("/explicit"))
	assert.Equal(t, "/env/models", GetModelsDir(""))

	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindONNX, KindOf("signs.ONNX"))
	assert.Equal(t, KindCascade, KindOf("facefinder"))
	assert.Equal(t, KindCascade, KindOf("face.cascade"))
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, KindCascade, "facefinder"))
	touch(t, filepath.Join(dir, "signs.onnx"))

	assert.Equal(t, filepath.Join(dir, KindCascade, "facefinder"), ResolveModelPath(dir, "facefinder"))
	assert.Equal(t, filepath.Join(dir, "signs.onnx"), ResolveModelPath(dir, "signs.onnx"))
	assert.Equal(t, "missing.onnx", ResolveModelPath(dir, "missing.onnx"))
	assert.Equal(t, "/abs/missing", ResolveModelPath(dir, "/abs/missing"))
	assert.Empty(t, ResolveModelPath(dir, ""))
}

func TestValidateModelReadable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "m.onnx")
	touch(t, file)

	require.NoError(t, ValidateModelReadable(file))
	require.Error(t, ValidateModelReadable(filepath.Join(dir, "none")))
	require.Error(t, ValidateModelReadable(dir))
}

func TestListAvailableModels(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, KindONNX, "signs.onnx"))
	touch(t, filepath.Join(dir, KindCascade, "facefinder"))
	touch(t, filepath.Join(dir, ".hidden"))

	list, err := ListAvailableModels(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ModelInfo{Name: "facefinder", Kind: KindCascade, Path: filepath.Join(dir, KindCascade, "facefinder")}, list[0])
	assert.Equal(t, KindONNX, list[1].Kind)

	list, err = ListAvailableModels(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
