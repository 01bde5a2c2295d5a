package store

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleObjects() []detector.DetectedObject {
	face := detector.NewObject("face", geometry.NewBox(geometry.Spherical, 6.1, -0.2, 0.1, 0.1))
	eye := detector.NewObject("eye", geometry.NewBox(geometry.Cartesian, 3, 4, 9, 8))
	eye.AutoStatus = detector.StatusValid
	face.AddChild(eye)
	face.FalsePositive = detector.FalsePositiveYes

	sign := detector.NewObject("sign", geometry.NewBox(geometry.Cartesian, 10, 20, 30, 40))
	return []detector.DetectedObject{face, sign}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	objects := sampleObjects()
	doc := &Document{
		Algorithm: "cascade",
		Cascade:   &Cascade{Models: []Model{{ClassName: "face", File: "face.cascade", MaxOccurrences: -1}}, ScaleFactor: 1.1, MinQuality: 5},
		Gnomonic:  &Gnomonic{Width: 2048, ApertureX: 60, ApertureY: 60},
		Source:    "pano.jpg",
		Objects:   FromObjects(objects),
	}

	path := filepath.Join(t.TempDir(), "out", "pano.yaml")
	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	got, err := loaded.Detections()
	require.NoError(t, err)
	if diff := cmp.Diff(objects, got); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got[0].Area.WrapsX())
}

func TestEncode_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Document{Algorithm: "none", Source: "a.png"}))
	out := buf.String()
	assert.Contains(t, out, "algorithm: none")
	assert.Contains(t, out, "objects: []")
	assert.NotContains(t, out, "gnomonic")
	assert.NotContains(t, out, "invalidObjects")
}

func TestDecode_Defaults(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
source: a.png
algorithm: none
objects:
  - className: face
    area: {system: 1, p1: {x: 1, y: 2}, p2: {x: 3, y: 4}}
invalidObjects:
  - className: sign
    area: {system: 2, p1: {x: 0.5, y: -0.1}, p2: {x: 0.6, y: 0.1}}
    falsePositive: "Yes"
`))
	require.NoError(t, err)

	objs, err := doc.Detections()
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "No", objs[0].FalsePositive)
	assert.Equal(t, "None", objs[0].AutoStatus)
	assert.Equal(t, "None", objs[0].ManualStatus)

	invalid, err := doc.InvalidDetections()
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.True(t, invalid[0].IsFalsePositive())
	assert.InDelta(t, 0.1, invalid[0].Area.Width(), 1e-12)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"not yaml":      `objects: [`,
		"missing class": "objects:\n  - area: {system: 1, p1: {x: 0, y: 0}, p2: {x: 1, y: 1}}\n",
		"missing area":  "objects:\n  - className: face\n",
		"bad system":    "objects:\n  - className: face\n    area: {system: 7, p1: {x: 0, y: 0}, p2: {x: 1, y: 1}}\n",
		"bad child":     "objects:\n  - className: face\n    area: {system: 1, p1: {x: 0, y: 0}, p2: {x: 1, y: 1}}\n    children:\n      - className: eye\n",
		"bad invalid":   "objects: []\ninvalidObjects:\n  - className: x\n",
		"wrong type":    "objects:\n  - className: face\n    area: {system: one}\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			require.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedRecord)
}

func TestFromObject_FillsDefaults(t *testing.T) {
	r := FromObject(detector.DetectedObject{
		ClassName: "x",
		Area:      geometry.NewBox(geometry.Spherical, 0, 0, math.Pi/4, 0.1),
	})
	assert.Equal(t, "No", r.FalsePositive)
	assert.Equal(t, "None", r.AutoStatus)
	assert.Equal(t, "None", r.ManualStatus)
	assert.Equal(t, 2, r.Area.System)
}
