// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"fmt"
)

// Invariant violations. These are never returned; they are raised with panic
// wrapped in an *InvariantError, because they signal a defect in the calling
// render code rather than a runtime condition.
var (
	// ErrGraphInFlight is raised when a graph build is opened while another
	// one is still open, or when the renderer is destroyed mid-build.
	ErrGraphInFlight = errors.New("framegraph: a graph is already being built")

	// ErrBuilderClosed is raised when a builder is used after Execute or Discard.
	ErrBuilderClosed = errors.New("framegraph: graph builder is closed")

	// ErrStaleHandle is raised when an ID from another build cycle is used.
	ErrStaleHandle = errors.New("framegraph: handle belongs to another build cycle")

	// ErrInvalidHandle is raised for zero-value or out-of-range IDs.
	ErrInvalidHandle = errors.New("framegraph: invalid handle")

	// ErrSlotAlreadyAttached is raised when a slot is attached twice.
	ErrSlotAlreadyAttached = errors.New("framegraph: attachment slot already attached")

	// ErrSlotNotAttached is raised when a slot operation needs an attachment
	// that was never declared.
	ErrSlotNotAttached = errors.New("framegraph: attachment slot not attached")

	// ErrRenderTargetNotAttached is raised when resolving a render target
	// that no pass has attached yet.
	ErrRenderTargetNotAttached = errors.New("framegraph: render target not attached by any pass")

	// ErrResolveConflict is raised when a slot is asked to resolve both to
	// a resolve texture and to an external texture.
	ErrResolveConflict = errors.New("framegraph: slot resolves to both a resolve texture and an external texture")

	// ErrDimensionMismatch is raised when the attachments of one pass differ
	// in width, height or sample count.
	ErrDimensionMismatch = errors.New("framegraph: pass attachments differ in size or sample count")

	// ErrReferenceLeak is raised when reference counts are not zero after
	// scheduling, or a count would go negative.
	ErrReferenceLeak = errors.New("framegraph: render target reference accounting is inconsistent")

	// ErrResourceAlive is raised when the renderer is destroyed while a
	// pooled resource is still leased to a graph.
	ErrResourceAlive = errors.New("framegraph: pooled resource is still alive")

	// ErrPassNotCurrent is raised when a PassScope is used outside its pass.
	ErrPassNotCurrent = errors.New("framegraph: pass scope used outside its pass")

	// ErrDepthResolveUnsupported is raised when a multisampled depth/stencil
	// target is asked for a resolve, which the HAL cannot express.
	ErrDepthResolveUnsupported = errors.New("framegraph: multisampled depth/stencil resolve is not supported")

	// ErrResolveNotReady is raised when a pass samples a resolve texture
	// produced by the same or a later pass.
	ErrResolveNotReady = errors.New("framegraph: resolve texture consumed before it is produced")

	// ErrResolveNotDeclared is raised when a PassScope is asked for a resolve
	// texture its pass did not attach.
	ErrResolveNotDeclared = errors.New("framegraph: resolve texture not attached to this pass")

	// ErrInvalidDescription is raised for zero-sized or zero-sample descriptions.
	ErrInvalidDescription = errors.New("framegraph: invalid render target description")

	// ErrRendererDestroyed is raised when a destroyed renderer is used.
	ErrRendererDestroyed = errors.New("framegraph: renderer has been destroyed")
)

// Device-level errors. These are returned from Execute.
var (
	// ErrNilDevice is returned when a renderer is created without a device or queue.
	ErrNilDevice = errors.New("framegraph: nil device or queue")

	// ErrNoHALProvider is returned when a gpucontext provider does not expose HAL types.
	ErrNoHALProvider = errors.New("framegraph: provider does not expose hal.Device and hal.Queue")
)

// InvariantError is the panic value raised for invariant violations.
// Recover it and use errors.Is to inspect the cause.
type InvariantError struct {
	// Op names the operation that detected the violation.
	Op string

	// Err is one of the Err* sentinels above.
	Err error

	// Detail carries context (ids, slot names, counts).
	Detail string
}

// Error implements error.
func (e *InvariantError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Detail)
}

// Unwrap returns the sentinel.
func (e *InvariantError) Unwrap() error { return e.Err }

// invariant panics with an *InvariantError.
func invariant(op string, err error, format string, args ...any) {
	panic(&InvariantError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)})
}

// assert panics with an *InvariantError when cond is false.
func assert(cond bool, op string, err error, format string, args ...any) {
	if !cond {
		invariant(op, err, format, args...)
	}
}
