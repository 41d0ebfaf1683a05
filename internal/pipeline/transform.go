// Package pipeline implements the ordered stack of streaming transforms a
// message passes through on its way to the sink: text normalization,
// compression, symmetric encryption and ASCII armor.
//
// Writes flow through the stack in reverse push order: the transform pushed
// last sees application data first, and the transform pushed first is the
// last to touch bytes before the underlying sink. Compression therefore
// must be pushed after encryption so plaintext is compressed before it is
// encrypted, and armor is pushed before both so it sees only final
// ciphertext.
package pipeline

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnderflowUnsupported is returned by write-path transforms; the read
// direction exists for symmetry with a future decryption pipeline.
var ErrUnderflowUnsupported = errors.New("pipeline: transform does not support the read path")

// Transform is one stage of the stack.
//
// Flush pushes a buffer of application data through the stage towards the
// sink and may be called any number of times. Underflow is the read-path
// counterpart. Finalize flushes any trailing state exactly once at the end
// of a successful stream. Free releases stage-private state and runs
// exactly once, also on error unwind. Name is a stable diagnostic label.
type Transform interface {
	Flush(p []byte) error
	Underflow(p []byte) (int, error)
	Finalize() error
	Free()
	Name() string
}

// Builder constructs a transform bound to its downstream writer.
type Builder func(down io.Writer) (Transform, error)

// Stack composes transforms over a single sink.
type Stack struct {
	transforms []Transform // in push order
	top        io.Writer
	done       bool
}

// NewStack returns an empty stack whose writes go straight to sink.
func NewStack(sink io.Writer) *Stack {
	return &Stack{top: sink}
}

// Push adds a transform on top of the stack; it becomes the first stage to
// see data written to the stack.
func (s *Stack) Push(build Builder) error {
	t, err := build(s.top)
	if err != nil {
		return err
	}

	s.transforms = append(s.transforms, t)
	s.top = flushWriter{t}

	return nil
}

// Top returns the writer feeding the outermost transform. Packet encoders
// that sit above the stack write here.
func (s *Stack) Top() io.Writer {
	return s.top
}

// Write pushes application data into the outermost transform.
func (s *Stack) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New("pipeline: write on torn-down stack")
	}

	if _, err := s.top.Write(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close finalizes the transforms in data order (last pushed first) and
// frees each exactly once. After the first finalize failure the remaining
// transforms are freed without finalizing; the sink is never closed here.
func (s *Stack) Close() error {
	if s.done {
		return nil
	}

	s.done = true

	var firstErr error

	for i := len(s.transforms) - 1; i >= 0; i-- {
		t := s.transforms[i]

		if firstErr == nil {
			if err := t.Finalize(); err != nil {
				firstErr = fmt.Errorf("finalizing %s: %w", t.Name(), err)
			}
		}

		t.Free()
	}

	return firstErr
}

// Abort frees all transforms without finalizing, discarding buffered
// state. Used on the error path so partially written packets are never
// completed.
func (s *Stack) Abort() {
	if s.done {
		return
	}

	s.done = true

	for i := len(s.transforms) - 1; i >= 0; i-- {
		s.transforms[i].Free()
	}
}

// flushWriter adapts a Transform to the io.Writer its upstream stage
// expects.
type flushWriter struct {
	t Transform
}

func (w flushWriter) Write(p []byte) (int, error) {
	if err := w.t.Flush(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// writeOnly provides the unused read path for write-direction transforms.
type writeOnly struct{}

func (writeOnly) Underflow([]byte) (int, error) {
	return 0, ErrUnderflowUnsupported
}
