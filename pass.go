// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PassKind distinguishes render passes from compute passes.
type PassKind uint8

const (
	// PassKindRender is a pass with attachments and a render pass encoder.
	PassKindRender PassKind = iota

	// PassKindCompute is a pass with a compute pass encoder and no attachments.
	PassKindCompute
)

// String returns the kind name.
func (k PassKind) String() string {
	switch k {
	case PassKindRender:
		return "Render"
	case PassKindCompute:
		return "Compute"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// RenderPassFunc records the commands of a render pass.
type RenderPassFunc func(enc hal.RenderPassEncoder, scope *PassScope)

// ComputePassFunc records the commands of a compute pass.
type ComputePassFunc func(enc hal.ComputePassEncoder, scope *PassScope)

// PostFunc runs after a pass has been submitted.
type PostFunc func(scope *PassScope)

// ExternalTexture is a texture owned by the caller (a swapchain image, a
// long-lived texture) that a pass renders or resolves into directly,
// bypassing the pools. View is optional; when nil a view is created for the
// duration of the pass. SampleCount 0 means 1.
type ExternalTexture struct {
	Texture     hal.Texture
	View        hal.TextureView
	Width       uint32
	Height      uint32
	SampleCount uint32
	Format      gputypes.TextureFormat
}

func (e *ExternalTexture) samples() uint32 {
	if e.SampleCount == 0 {
		return 1
	}
	return e.SampleCount
}

// Viewport is a rectangle in normalized [0,1] attachment coordinates.
type Viewport struct {
	X, Y, W, H float32
}

// FullViewport covers the whole attachment.
var FullViewport = Viewport{X: 0, Y: 0, W: 1, H: 1}

type attachment struct {
	renderTargetID RenderTargetID
	view           AttachmentView
	external       *ExternalTexture
	clear          *ClearDescriptor
}

func (a *attachment) used() bool {
	return a.renderTargetID.IsValid() || a.external != nil
}

// pass is the graph's record of one unit of GPU work.
type pass struct {
	kind      PassKind
	index     int
	debugName string

	attachments           [NumAttachmentSlots]attachment
	resolveOutputIDs      [NumAttachmentSlots]ResolveTextureID
	resolveOutputExternal [NumAttachmentSlots]*ExternalTexture
	resolveInputIDs       []ResolveTextureID
	extraRefs             [NumAttachmentSlots]bool
	thumbnails            [NumAttachmentSlots]bool

	viewport          Viewport
	occlusionQuerySet hal.QuerySet

	renderFunc  RenderPassFunc
	computeFunc ComputePassFunc
	postFunc    PostFunc

	sched passSchedule
}

// ResolveMode reports how a slot's resolve request was satisfied.
type ResolveMode uint8

const (
	// ResolveNone means no resolve was requested.
	ResolveNone ResolveMode = iota

	// ResolveElided means the single-sampled target is its own resolve result.
	ResolveElided

	// ResolveAttachment means a multisampled color attachment resolves into
	// a single-sampled texture at the end of the pass.
	ResolveAttachment

	// ResolveCopy means a single-sampled target is copied into a separate
	// texture after the pass because a later pass writes the target again.
	ResolveCopy
)

// String returns the mode name.
func (m ResolveMode) String() string {
	switch m {
	case ResolveNone:
		return "None"
	case ResolveElided:
		return "Elided"
	case ResolveAttachment:
		return "Attachment"
	case ResolveCopy:
		return "Copy"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// slotSchedule is what the scheduler decided for one attachment slot.
type slotSchedule struct {
	renderTarget *RenderTarget
	external     *ExternalTexture
	view         hal.TextureView
	ownedView    bool
	level        uint32

	width, height, sampleCount uint32
	format                     gputypes.TextureFormat

	colorLoad    gputypes.LoadOp
	depthLoad    gputypes.LoadOp
	stencilLoad  gputypes.LoadOp
	clearColor   gputypes.Color
	clearDepth   float32
	clearStencil uint32
	store        bool

	resolveMode    ResolveMode
	resolveTexture hal.Texture
	resolveView    hal.TextureView
	resolveSingle  *SingleSampledTexture
	resolveOwned   bool

	// resolveUsage is the state resolveTexture is left in by the pass.
	resolveUsage gputypes.TextureUsage
}

func (s *slotSchedule) used() bool { return s.view != nil }

// texture returns the texture the slot renders into.
func (s *slotSchedule) texture() hal.Texture {
	if s.renderTarget != nil {
		return s.renderTarget.texture
	}
	if s.external != nil {
		return s.external.Texture
	}
	return nil
}

type resolvedInput struct {
	texture hal.Texture
	view    hal.TextureView
	target  *RenderTarget
	single  *SingleSampledTexture
}

type passSchedule struct {
	slots                      [NumAttachmentSlots]slotSchedule
	width, height, sampleCount uint32
	viewport                   [4]float32
	inputs                     []resolvedInput
	thumbnails                 []*thumbnailEntry
}

// passHandle carries the declaration methods shared by render and compute passes.
type passHandle struct {
	p *pass
	b *GraphBuilder
}

// SetDebugName names the pass for labels, logs and frame introspection.
func (h passHandle) SetDebugName(name string) {
	h.b.checkOpen("SetDebugName")
	h.p.debugName = name
}

// DebugName returns the pass name.
func (h passHandle) DebugName() string { return h.p.debugName }

// AttachResolveTexture declares that the pass samples a resolve texture.
// The texture is available through PassScope.ResolveTexture while the pass runs.
func (h passHandle) AttachResolveTexture(id ResolveTextureID) {
	h.b.checkOpen("AttachResolveTexture")
	h.b.checkResolveID("AttachResolveTexture", id)
	h.p.resolveInputIDs = append(h.p.resolveInputIDs, id)
}

// Post sets the callback invoked after the pass has been submitted.
func (h passHandle) Post(fn PostFunc) {
	h.b.checkOpen("Post")
	h.p.postFunc = fn
}

// RenderPass is the declaration surface handed to PushPass setup callbacks.
type RenderPass struct {
	passHandle
}

// SetViewport sets the viewport in normalized [0,1] units. The default covers
// the whole attachment.
func (rp *RenderPass) SetViewport(x, y, w, h float32) {
	rp.b.checkOpen("SetViewport")
	rp.p.viewport = Viewport{X: x, Y: y, W: w, H: h}
}

// AttachRenderTargetID binds a graph render target to slot, rendering into
// level 0, layer 0.
func (rp *RenderPass) AttachRenderTargetID(slot AttachmentSlot, id RenderTargetID) {
	rp.AttachRenderTargetView(slot, id, AttachmentView{})
}

// AttachRenderTargetView binds a graph render target to slot, rendering into
// the given level and layer.
func (rp *RenderPass) AttachRenderTargetView(slot AttachmentSlot, id RenderTargetID, view AttachmentView) {
	const op = "AttachRenderTargetID"
	rp.b.checkOpen(op)
	rp.checkFreeSlot(op, slot)
	rp.b.checkRenderTargetID(op, id)
	d := &rp.b.g.descriptions[id.index]
	assert(view.Level < d.NumLevels, op, ErrInvalidDescription,
		"level %d out of range for %q (%d levels)", view.Level, rp.b.g.debugNames[id.index], d.NumLevels)
	rp.p.attachments[slot] = attachment{renderTargetID: id, view: view}
}

// AttachTexture binds an external texture to slot. External attachments are
// always stored. A nil clear descriptor loads the existing contents.
func (rp *RenderPass) AttachTexture(slot AttachmentSlot, tex ExternalTexture, clear *ClearDescriptor) {
	const op = "AttachTexture"
	rp.b.checkOpen(op)
	rp.checkFreeSlot(op, slot)
	assert(tex.Texture != nil, op, ErrInvalidHandle, "nil texture for slot %s", slot)
	assert(tex.Width > 0 && tex.Height > 0, op, ErrInvalidDescription, "external texture size %dx%d", tex.Width, tex.Height)
	ext := tex
	var c *ClearDescriptor
	if clear != nil {
		cc := *clear
		c = &cc
	}
	rp.p.attachments[slot] = attachment{external: &ext, clear: c}
}

// AttachOcclusionQuerySet associates an occlusion query set with the pass.
// The HAL render pass descriptor has no occlusion slot, so the set is handed
// to the exec callback through PassScope.OcclusionQuerySet.
func (rp *RenderPass) AttachOcclusionQuerySet(qs hal.QuerySet) {
	rp.b.checkOpen("AttachOcclusionQuerySet")
	rp.p.occlusionQuerySet = qs
}

// AddExtraRef adds one output reference to the render target in slot, which
// forces its contents to be stored at the end of this pass.
func (rp *RenderPass) AddExtraRef(slot AttachmentSlot) {
	const op = "AddExtraRef"
	rp.b.checkOpen(op)
	assert(slot.valid(), op, ErrInvalidHandle, "slot %d", int(slot))
	assert(rp.p.attachments[slot].renderTargetID.IsValid(), op, ErrSlotNotAttached, "slot %s has no render target", slot)
	rp.p.extraRefs[slot] = true
}

// Exec sets the callback that records the pass commands.
func (rp *RenderPass) Exec(fn RenderPassFunc) {
	rp.b.checkOpen("Exec")
	rp.p.renderFunc = fn
}

func (rp *RenderPass) checkFreeSlot(op string, slot AttachmentSlot) {
	assert(slot.valid(), op, ErrInvalidHandle, "slot %d", int(slot))
	assert(!rp.p.attachments[slot].used(), op, ErrSlotAlreadyAttached, "pass %q slot %s", rp.p.debugName, slot)
}

// ComputePass is the declaration surface handed to PushComputePass setup callbacks.
type ComputePass struct {
	passHandle
}

// Exec sets the callback that records the pass commands.
func (cp *ComputePass) Exec(fn ComputePassFunc) {
	cp.b.checkOpen("Exec")
	cp.p.computeFunc = fn
}
