package detector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterConfig_Classify(t *testing.T) {
	c := DefaultFilterConfig()

	assert.Equal(t, StatusValid, c.Classify(cart("face", 0, 0, 100, 100), 8000, 4000))
	assert.Equal(t, StatusFilteredRatio, c.Classify(cart("face", 0, 0, 200, 100), 8000, 4000))
	assert.Equal(t, StatusFilteredRatio, c.Classify(cart("face", 0, 0, 50, 100), 8000, 4000))
	assert.Equal(t, StatusFilteredRatio, c.Classify(cart("face", 0, 0, 10, 0), 8000, 4000))
	assert.Equal(t, StatusFilteredSize, c.Classify(cart("face", 0, 0, 3100, 3100), 8000, 4000))
}

func TestFilterConfig_ClassifySphericalUsesPixels(t *testing.T) {
	c := DefaultFilterConfig()
	// a quarter of the sphere wide: 10000 px on a 40000 px panorama
	big := sph("face", 0, -math.Pi/4, math.Pi/2, math.Pi/4)
	assert.Equal(t, StatusFilteredSize, c.Classify(big, 40000, 20000))
	assert.Equal(t, StatusValid, c.Classify(big, 4000, 2000))
}

func TestApplyFiltersAndMarkInvalid(t *testing.T) {
	objects := []DetectedObject{cart("face", 0, 0, 10, 10), cart("face", 0, 0, 40, 10)}

	ApplyFilters(objects, DefaultFilterConfig(), 100, 100)
	assert.Equal(t, StatusValid, objects[0].AutoStatus)
	assert.Equal(t, StatusFilteredRatio, objects[1].AutoStatus)

	MarkInvalid(objects)
	assert.Equal(t, StatusInvalid, objects[0].AutoStatus)
	assert.Equal(t, StatusInvalid, objects[1].AutoStatus)
}
