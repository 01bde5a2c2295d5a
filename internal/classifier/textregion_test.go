package classifier

import (
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/onnx"
	"github.com/MeKo-Tech/panoblur/internal/onnx/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out   mock.ProbabilityMap
	err   error
	shape []int64
}

func (f *fakeRunner) Run(t onnx.Tensor) ([]float32, []int64, error) {
	f.shape = t.Shape
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.out.Data, f.out.Shape(), nil
}

func TestTextRegion_ScalesComponentsToSource(t *testing.T) {
	r := &fakeRunner{out: mock.NewRectsMap(32, 16, 0.9, 0.05,
		image.Rect(4, 2, 8, 6),
		image.Rect(20, 10, 21, 11), // below MinArea
	)}
	tr, err := NewTextRegion(r, DefaultTextRegionConfig())
	require.NoError(t, err)
	assert.False(t, tr.NeedsGray())

	rects, err := tr.Classify(image.NewRGBA(image.Rect(0, 0, 64, 32)))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 32, 64}, r.shape)
	require.Len(t, rects, 1)
	assert.Equal(t, image.Rect(8, 4, 16, 12), rects[0])
}

func TestTextRegion_LowConfidenceDropped(t *testing.T) {
	r := &fakeRunner{out: mock.NewRectsMap(32, 32, 0.35, 0, image.Rect(0, 0, 10, 10))}
	tr, err := NewTextRegion(r, DefaultTextRegionConfig())
	require.NoError(t, err)

	rects, err := tr.Classify(image.NewRGBA(image.Rect(0, 0, 32, 32)))
	require.NoError(t, err)
	assert.Empty(t, rects)
}

func TestTextRegion_Errors(t *testing.T) {
	_, err := NewTextRegion(nil, DefaultTextRegionConfig())
	require.Error(t, err)

	cfg := DefaultTextRegionConfig()
	cfg.MaxSide = 8
	_, err = NewTextRegion(&fakeRunner{}, cfg)
	require.Error(t, err)

	tr, err := NewTextRegion(&fakeRunner{err: errors.New("runtime down")}, DefaultTextRegionConfig())
	require.NoError(t, err)
	_, err = tr.Classify(image.NewRGBA(image.Rect(0, 0, 32, 32)))
	require.ErrorContains(t, err, "runtime down")

	_, err = tr.Classify(nil)
	require.Error(t, err)
}

func TestComponents(t *testing.T) {
	m := mock.NewRectsMap(10, 6, 1, 0,
		image.Rect(0, 0, 2, 2),
		image.Rect(5, 1, 9, 3),
		image.Rect(5, 3, 6, 5),
	)
	comps := components(m.Data, m.Width, m.Height, 0.5)
	require.Len(t, comps, 2)
	assert.Equal(t, 4, comps[0].count)
	assert.Equal(t, 10, comps[1].count)
	assert.Equal(t, [4]int{5, 1, 8, 4}, [4]int{comps[1].minX, comps[1].minY, comps[1].maxX, comps[1].maxY})
	assert.InDelta(t, 1.0, comps[1].mean(), 1e-9)

	assert.Nil(t, components(nil, 0, 0, 0.5))
}
