// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// AttachmentSlot identifies one of the fixed attachment points of a render pass.
type AttachmentSlot int

const (
	// SlotColor0 is the first color attachment.
	SlotColor0 AttachmentSlot = iota
	// SlotColor1 is the second color attachment.
	SlotColor1
	// SlotColor2 is the third color attachment.
	SlotColor2
	// SlotColor3 is the fourth color attachment.
	SlotColor3
	// SlotDepthStencil is the depth/stencil attachment.
	SlotDepthStencil

	// NumAttachmentSlots is the number of attachment slots.
	NumAttachmentSlots = int(SlotDepthStencil) + 1
)

// String returns the slot name.
func (s AttachmentSlot) String() string {
	switch s {
	case SlotColor0:
		return "Color0"
	case SlotColor1:
		return "Color1"
	case SlotColor2:
		return "Color2"
	case SlotColor3:
		return "Color3"
	case SlotDepthStencil:
		return "DepthStencil"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsColor reports whether s is one of the color slots.
func (s AttachmentSlot) IsColor() bool {
	return s >= SlotColor0 && s <= SlotColor3
}

func (s AttachmentSlot) valid() bool {
	return s >= SlotColor0 && s <= SlotDepthStencil
}

// RenderTargetID names a virtual render target within one build cycle.
// The zero value is not a valid ID.
type RenderTargetID struct {
	index      int32
	generation uint32
}

// IsValid reports whether the ID was produced by a builder.
func (id RenderTargetID) IsValid() bool { return id.generation != 0 }

// String returns a short form for logs.
func (id RenderTargetID) String() string {
	if !id.IsValid() {
		return "rt(invalid)"
	}
	return fmt.Sprintf("rt(%d@%d)", id.index, id.generation)
}

// ResolveTextureID names a single-sampled resolve result within one build cycle.
// The zero value is not a valid ID.
type ResolveTextureID struct {
	index      int32
	generation uint32
}

// IsValid reports whether the ID was produced by a builder.
func (id ResolveTextureID) IsValid() bool { return id.generation != 0 }

// String returns a short form for logs.
func (id ResolveTextureID) String() string {
	if !id.IsValid() {
		return "resolve(invalid)"
	}
	return fmt.Sprintf("resolve(%d@%d)", id.index, id.generation)
}

// ColorClear is either a clear color or "load the previous contents".
type ColorClear struct {
	Load  bool
	Color gputypes.Color
}

// DepthClear is either a clear depth or "load".
type DepthClear struct {
	Load  bool
	Depth float32
}

// StencilClear is either a clear stencil value or "load".
type StencilClear struct {
	Load    bool
	Stencil uint32
}

// LoadColor keeps the previous color contents.
var LoadColor = ColorClear{Load: true}

// LoadDepth keeps the previous depth contents.
var LoadDepth = DepthClear{Load: true}

// LoadStencil keeps the previous stencil contents.
var LoadStencil = StencilClear{Load: true}

// ClearColor clears to c.
func ClearColor(c gputypes.Color) ColorClear { return ColorClear{Color: c} }

// ClearDepth clears to d.
func ClearDepth(d float32) DepthClear { return DepthClear{Depth: d} }

// ClearStencil clears to s.
func ClearStencil(s uint32) StencilClear { return StencilClear{Stencil: s} }

// ClearDescriptor holds the clear behaviour of an externally attached texture.
type ClearDescriptor struct {
	Color   ColorClear
	Depth   DepthClear
	Stencil StencilClear
}

// RenderTargetDescription describes a virtual render target. It is a value
// type: the With* methods return modified copies and a builder keeps its own
// copy, so a description never changes once registered.
type RenderTargetDescription struct {
	Width       uint32
	Height      uint32
	NumLevels   uint32
	SampleCount uint32
	Format      gputypes.TextureFormat

	ClearColor   ColorClear
	ClearDepth   DepthClear
	ClearStencil StencilClear
}

// NewRenderTargetDescription returns a single-level, single-sampled
// description with every aspect set to load. Dimensions must be set with
// WithDimensions before the description is registered.
func NewRenderTargetDescription(format gputypes.TextureFormat) RenderTargetDescription {
	return RenderTargetDescription{
		NumLevels:    1,
		SampleCount:  1,
		Format:       format,
		ClearColor:   LoadColor,
		ClearDepth:   LoadDepth,
		ClearStencil: LoadStencil,
	}
}

// WithDimensions sets width, height and sample count.
func (d RenderTargetDescription) WithDimensions(width, height, sampleCount uint32) RenderTargetDescription {
	d.Width = width
	d.Height = height
	d.SampleCount = sampleCount
	return d
}

// WithLevels sets the mip level count.
func (d RenderTargetDescription) WithLevels(n uint32) RenderTargetDescription {
	d.NumLevels = n
	return d
}

// CopyDimensions copies width, height and sample count from other.
func (d RenderTargetDescription) CopyDimensions(other RenderTargetDescription) RenderTargetDescription {
	return d.WithDimensions(other.Width, other.Height, other.SampleCount)
}

// WithClearColor sets the clear color.
func (d RenderTargetDescription) WithClearColor(c ColorClear) RenderTargetDescription {
	d.ClearColor = c
	return d
}

// WithClearDepth sets the depth clear.
func (d RenderTargetDescription) WithClearDepth(c DepthClear) RenderTargetDescription {
	d.ClearDepth = c
	return d
}

// WithClearStencil sets the stencil clear.
func (d RenderTargetDescription) WithClearStencil(c StencilClear) RenderTargetDescription {
	d.ClearStencil = c
	return d
}

// Validate reports whether d can back a render target.
func (d RenderTargetDescription) Validate() error {
	switch {
	case d.Width == 0 || d.Height == 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidDescription, d.Width, d.Height)
	case d.SampleCount == 0:
		return fmt.Errorf("%w: sample count 0", ErrInvalidDescription)
	case d.NumLevels == 0:
		return fmt.Errorf("%w: level count 0", ErrInvalidDescription)
	case d.Format == gputypes.TextureFormatUndefined:
		return fmt.Errorf("%w: undefined format", ErrInvalidDescription)
	}
	return nil
}

// levelSize returns the size of mip level l, clamped to 1.
func levelSize(width, height, l uint32) (uint32, uint32) {
	return max(width>>l, 1), max(height>>l, 1)
}
