package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// Session runs a single-input single-output float32 model.
type Session struct {
	path    string
	input   onnxruntime_go.InputOutputInfo
	output  onnxruntime_go.InputOutputInfo
	session *onnxruntime_go.DynamicAdvancedSession
	mu      sync.Mutex
}

// NewSession loads the model at path. numThreads <= 0 leaves the runtime default.
func NewSession(path string, numThreads int) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}
	if err := Init(); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs))
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Debug("Failed to destroy session options", "error", err)
		}
	}()
	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	s, err := onnxruntime_go.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("ONNX session ready", "model", path, "input", inputs[0].Name, "output", outputs[0].Name)
	return &Session{path: path, input: inputs[0], output: outputs[0], session: s}, nil
}

// Run feeds t through the model and returns the first output with its shape.
func (s *Session) Run(t Tensor) ([]float32, []int64, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil, errors.New("session is closed")
	}

	in, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := in.Destroy(); err != nil {
			slog.Debug("Failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := s.session.Run([]onnxruntime_go.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Debug("Failed to destroy output tensor", "error", err)
		}
	}()

	out, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	data := append([]float32(nil), out.GetData()...)
	return data, []int64(out.GetShape()), nil
}

// Path returns the model file.
func (s *Session) Path() string { return s.path }

// Close releases the runtime session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
