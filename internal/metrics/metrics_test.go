package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_Increment(t *testing.T) {
	before := testutil.ToFloat64(TilesScanned)
	TilesScanned.Add(3)
	assert.InDelta(t, before+3, testutil.ToFloat64(TilesScanned), 1e-9)

	face := Detections.WithLabelValues("face")
	before = testutil.ToFloat64(face)
	face.Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(face), 1e-9)
}

func TestWriteTextfile(t *testing.T) {
	MergeClusters.Inc()
	path := filepath.Join(t.TempDir(), "panoblur.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panoblur_merge_clusters_total")
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "out.prom"))
	require.Error(t, err)
}
