package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// fakeDetector returns a fixed object list and records the options it was called with.
type fakeDetector struct {
	mu      sync.Mutex
	objects []detector.DetectedObject
	err     error
	opts    []pipeline.DetectOptions
}

func newFakeDetector() *fakeDetector {
	face := detector.NewObject("face", geometry.NewBox(geometry.Cartesian, 4, 4, 12, 12))
	face.AutoStatus = detector.StatusValid
	return &fakeDetector{objects: []detector.DetectedObject{face}}
}

func (f *fakeDetector) DetectWith(ctx context.Context, _ image.Image, opts pipeline.DetectOptions) ([]detector.DetectedObject, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.objects, f.err
}

func (f *fakeDetector) DocumentWith(source string, objects []detector.DetectedObject, opts pipeline.DetectOptions) *store.Document {
	doc := &store.Document{Algorithm: "cascade", Source: source, Objects: store.FromObjects(objects)}
	if opts.Gnomonic != nil && *opts.Gnomonic {
		doc.Gnomonic = &store.Gnomonic{Width: 2048, ApertureX: 60, ApertureY: 60}
	}
	return doc
}

func (f *fakeDetector) lastOpts() pipeline.DetectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts[len(f.opts)-1]
}

func newTestServer(t *testing.T, det Detector, cfg Config) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(det, cfg).SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// checkerPNG encodes a 32x16 black and white checkerboard.
func checkerPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func postImage(t *testing.T, url string, data []byte, header http.Header) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, "image", "pano.png", data)
	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
