package utils

import "fmt"

// ImageProcessingError records which image operation failed.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *ImageProcessingError) Unwrap() error { return e.Err }
