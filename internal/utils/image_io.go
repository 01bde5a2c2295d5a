// Package utils holds image IO and pixel helpers shared by the detection tools.
package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// SupportedImageExtensions lists the file extensions LoadImage accepts.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("Error closing image file", "path", path, "error", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}

	b := img.Bounds()
	return img, ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// DecodeImage decodes an image from an already opened reader such as an upload.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// SaveImage encodes img in the format implied by the path extension, creating parent
// directories as needed. JPEG output uses the given quality.
func SaveImage(img image.Image, path string, jpegQuality int) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Err: errors.New("input image is nil")}
	}
	if !IsSupportedImage(path) {
		return &ImageProcessingError{Operation: "save", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}

// FormatExtension maps an export format name to its file extension.
func FormatExtension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "png":
		return ".png", nil
	case "jpg", "jpeg":
		return ".jpg", nil
	case "tif", "tiff":
		return ".tiff", nil
	case "bmp":
		return ".bmp", nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", format)
	}
}
