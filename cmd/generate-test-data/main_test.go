package main

import (
	"image"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/panoblur/internal/evaluate"
	"github.com/MeKo-Tech/panoblur/internal/store"
	"github.com/MeKo-Tech/panoblur/internal/testutil"
)

func TestSphericalBox(t *testing.T) {
	cfg := testutil.DefaultPanoramaConfig()

	b := sphericalBox(cfg, image.Rect(128, 64, 256, 128))
	assert.InDelta(t, math.Pi/2, b.P1.X, 1e-9)
	assert.InDelta(t, math.Pi, b.P2.X, 1e-9)
	assert.InDelta(t, -math.Pi/4, b.P1.Y, 1e-9)
	assert.InDelta(t, 0, b.P2.Y, 1e-9)
	assert.False(t, b.WrapsX())

	wrapped := sphericalBox(cfg, image.Rect(-16, 10, 16, 40))
	assert.True(t, wrapped.WrapsX())
	rects := wrapped.Rects(cfg.Width, cfg.Height)
	require.Len(t, rects, 2)
	assert.Equal(t, image.Rect(496, 10, 512, 40), rects[0])
	assert.Equal(t, image.Rect(0, 10, 16, 40), rects[1])
}

func TestGenerateMatchesOwnMask(t *testing.T) {
	name := filepath.Join(t.TempDir(), "pano1")
	rng := rand.New(rand.NewPCG(7, 7))
	require.NoError(t, generate(rng, name, 512, 4))

	doc, err := store.Load(name + ".yaml")
	require.NoError(t, err)
	require.Len(t, doc.Objects, 4)
	objects, err := doc.Detections()
	require.NoError(t, err)

	pano := testutil.LoadImage(t, name+".png")
	assert.Equal(t, image.Rect(0, 0, 512, 256), pano.Bounds())

	report, err := evaluate.Evaluate(objects, testutil.LoadImage(t, name+"-mask.png"))
	require.NoError(t, err)
	assert.Zero(t, report.FalsePositives)
	assert.Zero(t, report.FalseNegatives)
	assert.Positive(t, report.PositivePixels)
}
