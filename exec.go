// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// inflightSubmission keeps a submitted command buffer until the GPU is done with it.
type inflightSubmission struct {
	encoder hal.CommandEncoder
	cmdBuf  hal.CommandBuffer
	index   uint64
}

// pendingRelease is a GPU object destruction held back until submission
// after has completed.
type pendingRelease struct {
	after   uint64
	release func()
}

// Execute schedules the graph recorded by b and then encodes, submits and
// post-processes each pass in the order it was pushed. b is closed on return.
//
// Device failures are returned. A failure during scheduling returns every
// leased resource to its pool and issues no GPU work.
func (r *Renderer) Execute(b *GraphBuilder) error {
	const op = "Execute"
	r.checkAlive(op)
	b.checkOpen(op)
	assert(r.builder == b, op, ErrStaleHandle, "builder belongs to another renderer or cycle")
	b.closed = true
	r.builder = nil

	r.retireSubmissions(false)

	sg, err := r.schedule(b.g)
	if err != nil {
		return err
	}
	defer r.releaseOwnedViews(sg)

	r.frames++
	frame := newFrameInfo(r.frames, sg)
	r.thumbnails.beginFrame()

	for _, p := range sg.passes {
		if err := r.executePass(sg, p, &frame); err != nil {
			r.lastFrame = frame
			return fmt.Errorf("execute pass %q: %w", p.debugName, err)
		}
	}

	for _, e := range r.thumbnails.endFrame() {
		tex := e.texture
		r.releaseAfter(e.lastUse, func() { r.device.DestroyTexture(tex) })
	}
	r.lastFrame = frame
	slogger().Debug("framegraph: frame executed", "frame", r.frames, "passes", len(sg.passes),
		"allocated", sg.allocated, "reused", sg.reused, "evicted", sg.evicted)
	return nil
}

// releaseOwnedViews hands the views created for external textures to the
// pending list. Every pass of the frame that could reference them has been
// submitted at or before r.submitted.
func (r *Renderer) releaseOwnedViews(sg *scheduledGraph) {
	for _, v := range sg.ownedViews {
		r.releaseAfter(r.submitted, func() { r.device.DestroyTextureView(v) })
	}
	sg.ownedViews = nil
	r.releaseCompleted(r.queue.PollCompleted(), false)
}

// releaseAfter defers fn until the GPU has completed submission index.
func (r *Renderer) releaseAfter(index uint64, fn func()) {
	r.pending = append(r.pending, pendingRelease{after: index, release: fn})
}

// markUsed records idx as the last submission referencing the pooled
// resources of p.
func (p *pass) markUsed(idx uint64) {
	for s := range p.sched.slots {
		ss := &p.sched.slots[s]
		if ss.renderTarget != nil {
			ss.renderTarget.lastUse = idx
		}
		if ss.resolveSingle != nil {
			ss.resolveSingle.lastUse = idx
		}
	}
	for _, in := range p.sched.inputs {
		if in.target != nil {
			in.target.lastUse = idx
		}
		if in.single != nil {
			in.single.lastUse = idx
		}
	}
	for _, e := range p.sched.thumbnails {
		e.lastUse = idx
	}
}

func (r *Renderer) executePass(sg *scheduledGraph, p *pass, frame *FrameInfo) error {
	label := r.label("pass", p.debugName)
	enc, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return fmt.Errorf("begin encoding: %w", err)
	}

	scope := &PassScope{r: r, p: p}
	r.current = p
	defer func() { r.current = nil }()

	switch p.kind {
	case PassKindRender:
		rp := enc.BeginRenderPass(r.renderPassDescriptor(p, label))
		vp := p.sched.viewport
		rp.SetViewport(vp[0], vp[1], vp[2], vp[3], 0, 1)
		if p.renderFunc != nil {
			p.renderFunc(rp, scope)
		}
		rp.End()
		r.encodeResolveCopies(enc, p)
		r.captureThumbnails(enc, sg, p, frame)
	case PassKindCompute:
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
		if p.computeFunc != nil {
			p.computeFunc(cp, scope)
		}
		cp.End()
	}

	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("end encoding: %w", err)
	}
	idx, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		enc.Destroy()
		return fmt.Errorf("submit: %w", err)
	}
	r.inflight = append(r.inflight, inflightSubmission{encoder: enc, cmdBuf: cmdBuf, index: idx})
	r.submitted = max(r.submitted, idx)
	p.markUsed(idx)

	if p.postFunc != nil {
		p.postFunc(scope)
	}
	return nil
}

func storeOp(store bool) gputypes.StoreOp {
	if store {
		return gputypes.StoreOpStore
	}
	return gputypes.StoreOpDiscard
}

// renderPassDescriptor builds the HAL descriptor from the scheduled slots.
// Color attachments are emitted up to the highest used color slot; unused
// slots in between have a nil view.
func (r *Renderer) renderPassDescriptor(p *pass, label string) *hal.RenderPassDescriptor {
	desc := &hal.RenderPassDescriptor{Label: label}

	last := -1
	for s := SlotColor0; s <= SlotColor3; s++ {
		if p.sched.slots[s].used() {
			last = int(s)
		}
	}
	for s := 0; s <= last; s++ {
		ss := &p.sched.slots[s]
		ca := hal.RenderPassColorAttachment{
			View:       ss.view,
			LoadOp:     ss.colorLoad,
			StoreOp:    storeOp(ss.store),
			ClearValue: ss.clearColor,
		}
		if ss.resolveMode == ResolveAttachment {
			ca.ResolveTarget = ss.resolveView
		}
		desc.ColorAttachments = append(desc.ColorAttachments, ca)
	}

	if ds := &p.sched.slots[SlotDepthStencil]; ds.used() {
		att := &hal.RenderPassDepthStencilAttachment{View: ds.view}
		if ds.format == gputypes.TextureFormatUndefined || ds.format.HasDepth() {
			att.DepthLoadOp = ds.depthLoad
			att.DepthStoreOp = storeOp(ds.store)
			att.DepthClearValue = ds.clearDepth
		}
		if ds.format == gputypes.TextureFormatUndefined || ds.format.HasStencil() {
			att.StencilLoadOp = ds.stencilLoad
			att.StencilStoreOp = storeOp(ds.store)
			att.StencilClearValue = ds.clearStencil
		}
		desc.DepthStencilAttachment = att
	}
	return desc
}

// encodeResolveCopies copies single-sampled targets into their resolve
// textures once the pass has ended and records the state every resolve
// destination is left in.
func (r *Renderer) encodeResolveCopies(enc hal.CommandEncoder, p *pass) {
	for s := range NumAttachmentSlots {
		ss := &p.sched.slots[s]
		switch ss.resolveMode {
		case ResolveCopy:
			var dstUsage gputypes.TextureUsage
			if ss.resolveSingle != nil {
				dstUsage = ss.resolveSingle.usage
			}
			copyTexture(enc, ss.texture(), ss.level, gputypes.TextureUsageRenderAttachment,
				ss.resolveTexture, dstUsage, ss.width, ss.height, aspectFor(ss.format))
			ss.resolveUsage = gputypes.TextureUsageTextureBinding
		case ResolveAttachment, ResolveElided:
			ss.resolveUsage = gputypes.TextureUsageRenderAttachment
		default:
			continue
		}
		if ss.resolveSingle != nil {
			ss.resolveSingle.usage = ss.resolveUsage
		}
	}
}

// copyTexture copies one level of src into level 0 of dst. src moves from
// and back to srcUsage; dst moves from dstUsage and is left in
// TextureBinding. A dstUsage of TextureUsageNone discards the previous
// contents of dst.
func copyTexture(enc hal.CommandEncoder, src hal.Texture, level uint32, srcUsage gputypes.TextureUsage,
	dst hal.Texture, dstUsage gputypes.TextureUsage, w, h uint32, aspect gputypes.TextureAspect) {
	rng := hal.TextureRange{Aspect: aspect, BaseMipLevel: level, MipLevelCount: 1}
	dstRng := hal.TextureRange{Aspect: aspect, MipLevelCount: 1}
	enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: src, Range: rng, Usage: hal.TextureUsageTransition{
			OldUsage: srcUsage, NewUsage: gputypes.TextureUsageCopySrc,
		}},
		{Texture: dst, Range: dstRng, Usage: hal.TextureUsageTransition{
			OldUsage: dstUsage, NewUsage: gputypes.TextureUsageCopyDst,
		}},
	})
	enc.CopyTextureToTexture(src, dst, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: src, MipLevel: level, Aspect: aspect},
		DstBase: hal.ImageCopyTexture{Texture: dst, Aspect: aspect},
		Size:    hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: src, Range: rng, Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc, NewUsage: srcUsage,
		}},
		{Texture: dst, Range: dstRng, Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst, NewUsage: gputypes.TextureUsageTextureBinding,
		}},
	})
}

// retireSubmissions frees command buffers the GPU has finished with and runs
// the pending releases they were holding back. With all set everything is
// freed; callers must have waited for idle.
func (r *Renderer) retireSubmissions(all bool) {
	if len(r.inflight) == 0 && len(r.pending) == 0 {
		return
	}
	completed := r.queue.PollCompleted()
	kept := r.inflight[:0]
	for _, s := range r.inflight {
		if !all && s.index > completed {
			kept = append(kept, s)
			continue
		}
		r.device.FreeCommandBuffer(s.cmdBuf)
		s.encoder.Destroy()
	}
	clear(r.inflight[len(kept):])
	r.inflight = kept
	r.releaseCompleted(completed, all)
}

func (r *Renderer) releaseCompleted(completed uint64, all bool) {
	kept := r.pending[:0]
	for _, p := range r.pending {
		if !all && p.after > completed {
			kept = append(kept, p)
			continue
		}
		p.release()
	}
	clear(r.pending[len(kept):])
	r.pending = kept
}

// PassScope is handed to exec and post callbacks. It is valid only while its
// pass is the renderer's current pass; any use afterwards panics.
type PassScope struct {
	r *Renderer
	p *pass
}

func (s *PassScope) check(op string) {
	assert(s.r.current == s.p, op, ErrPassNotCurrent, "scope of pass %q", s.p.debugName)
}

func (s *PassScope) input(op string, id ResolveTextureID) resolvedInput {
	s.check(op)
	for i, rid := range s.p.resolveInputIDs {
		if rid == id {
			return s.p.sched.inputs[i]
		}
	}
	invariant(op, ErrResolveNotDeclared, "pass %q, %s", s.p.debugName, id)
	return resolvedInput{}
}

// ResolveTexture returns the single-sampled texture behind a resolve input
// of the pass.
func (s *PassScope) ResolveTexture(id ResolveTextureID) hal.Texture {
	return s.input("ResolveTexture", id).texture
}

// ResolveTextureView returns a full view of a resolve input of the pass.
func (s *PassScope) ResolveTextureView(id ResolveTextureID) hal.TextureView {
	return s.input("ResolveTextureView", id).view
}

// RenderTargetTexture returns the sampleable texture backing slot. It is nil
// for unused or external slots and for multisampled targets.
func (s *PassScope) RenderTargetTexture(slot AttachmentSlot) hal.Texture {
	s.check("RenderTargetTexture")
	if !slot.valid() {
		return nil
	}
	rt := s.p.sched.slots[slot].renderTarget
	if rt == nil {
		return nil
	}
	return rt.Texture()
}

// RenderTargetView returns the attachment view bound to slot, or nil.
func (s *PassScope) RenderTargetView(slot AttachmentSlot) hal.TextureView {
	s.check("RenderTargetView")
	if !slot.valid() {
		return nil
	}
	return s.p.sched.slots[slot].view
}

// OcclusionQuerySet returns the query set attached to the pass, if any.
func (s *PassScope) OcclusionQuerySet() hal.QuerySet {
	s.check("OcclusionQuerySet")
	return s.p.occlusionQuerySet
}

// Device returns the renderer's device.
func (s *PassScope) Device() hal.Device {
	s.check("Device")
	return s.r.device
}

// Queue returns the renderer's queue.
func (s *PassScope) Queue() hal.Queue {
	s.check("Queue")
	return s.r.queue
}

// Viewport returns the pass viewport in pixels as x, y, width, height.
func (s *PassScope) Viewport() (x, y, w, h float32) {
	s.check("Viewport")
	vp := s.p.sched.viewport
	return vp[0], vp[1], vp[2], vp[3]
}

// Size returns the attachment size and sample count of the pass.
func (s *PassScope) Size() (width, height, sampleCount uint32) {
	s.check("Size")
	return s.p.sched.width, s.p.sched.height, s.p.sched.sampleCount
}

// Format returns the format of the attachment in slot, or
// TextureFormatUndefined.
func (s *PassScope) Format(slot AttachmentSlot) gputypes.TextureFormat {
	s.check("Format")
	if !slot.valid() {
		return gputypes.TextureFormatUndefined
	}
	return s.p.sched.slots[slot].format
}

// PassName returns the debug name of the pass.
func (s *PassScope) PassName() string {
	s.check("PassName")
	return s.p.debugName
}

// Frame returns the number of the frame being executed, starting at 1.
func (s *PassScope) Frame() uint64 {
	s.check("Frame")
	return s.r.frames
}
