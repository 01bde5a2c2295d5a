package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a row-major float32 tensor; images use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps data as a [1, C, H, W] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks that the data length matches the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	expected := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// ProbabilityMap extracts the first plane of a [N, C, H, W] model output.
func ProbabilityMap(data []float32, shape []int64) ([]float32, int, int, error) {
	if err := VerifyImageTensor(Tensor{Data: data, Shape: shape}); err != nil {
		return nil, 0, 0, err
	}
	h, w := int(shape[2]), int(shape[3])
	return data[:h*w], w, h, nil
}
