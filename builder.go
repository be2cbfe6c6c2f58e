// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

// graph is everything a builder captured for one frame.
type graph struct {
	generation uint32

	descriptions []RenderTargetDescription
	debugNames   []string

	// resolveSources maps a resolve-texture index to the render target it
	// was resolved from, and resolveProducers to the pass that produces it.
	resolveSources   []RenderTargetID
	resolveProducers []*pass

	passes     []*pass
	thumbnails []thumbnailRequest
}

type thumbnailRequest struct {
	pass  *pass
	slot  AttachmentSlot
	label string
	id    RenderTargetID
}

// GraphBuilder records the render targets and passes of one frame.
//
// A builder is obtained from Renderer.NewGraphBuilder and is consumed by
// Renderer.Execute or Renderer.Discard. Every method panics with an
// *InvariantError once the builder is closed.
type GraphBuilder struct {
	r      *Renderer
	g      *graph
	closed bool
}

func (b *GraphBuilder) checkOpen(op string) {
	assert(!b.closed, op, ErrBuilderClosed, "generation %d", b.g.generation)
}

func (b *GraphBuilder) checkRenderTargetID(op string, id RenderTargetID) {
	assert(id.IsValid(), op, ErrInvalidHandle, "%s", id)
	assert(id.generation == b.g.generation, op, ErrStaleHandle, "%s used in generation %d", id, b.g.generation)
	assert(id.index >= 0 && int(id.index) < len(b.g.descriptions), op, ErrInvalidHandle, "%s out of range", id)
}

func (b *GraphBuilder) checkResolveID(op string, id ResolveTextureID) {
	assert(id.IsValid(), op, ErrInvalidHandle, "%s", id)
	assert(id.generation == b.g.generation, op, ErrStaleHandle, "%s used in generation %d", id, b.g.generation)
	assert(id.index >= 0 && int(id.index) < len(b.g.resolveSources), op, ErrInvalidHandle, "%s out of range", id)
}

// Generation returns the build cycle number of this builder.
func (b *GraphBuilder) Generation() uint32 { return b.g.generation }

// CreateRenderTargetID registers a copy of desc and returns its handle.
func (b *GraphBuilder) CreateRenderTargetID(desc RenderTargetDescription, debugName string) RenderTargetID {
	const op = "CreateRenderTargetID"
	b.checkOpen(op)
	if err := desc.Validate(); err != nil {
		invariant(op, ErrInvalidDescription, "%q: %v", debugName, err)
	}
	id := RenderTargetID{index: int32(len(b.g.descriptions)), generation: b.g.generation}
	b.g.descriptions = append(b.g.descriptions, desc)
	b.g.debugNames = append(b.g.debugNames, debugName)
	return id
}

// RenderTargetDescription returns the description registered for id.
func (b *GraphBuilder) RenderTargetDescription(id RenderTargetID) RenderTargetDescription {
	b.checkOpen("RenderTargetDescription")
	b.checkRenderTargetID("RenderTargetDescription", id)
	return b.g.descriptions[id.index]
}

// RenderTargetDebugName returns the name registered for id.
func (b *GraphBuilder) RenderTargetDebugName(id RenderTargetID) string {
	b.checkOpen("RenderTargetDebugName")
	b.checkRenderTargetID("RenderTargetDebugName", id)
	return b.g.debugNames[id.index]
}

func (b *GraphBuilder) newPass(kind PassKind) *pass {
	return &pass{
		kind:     kind,
		index:    len(b.g.passes),
		viewport: FullViewport,
	}
}

// PushPass appends a render pass. setup runs synchronously and declares the
// pass's attachments, resolves and callbacks.
func (b *GraphBuilder) PushPass(setup func(*RenderPass)) *RenderPass {
	b.checkOpen("PushPass")
	p := b.newPass(PassKindRender)
	rp := &RenderPass{passHandle{p: p, b: b}}
	b.g.passes = append(b.g.passes, p)
	if setup != nil {
		setup(rp)
	}
	return rp
}

// PushComputePass appends a compute pass.
func (b *GraphBuilder) PushComputePass(setup func(*ComputePass)) *ComputePass {
	b.checkOpen("PushComputePass")
	p := b.newPass(PassKindCompute)
	cp := &ComputePass{passHandle{p: p, b: b}}
	b.g.passes = append(b.g.passes, p)
	if setup != nil {
		setup(cp)
	}
	return cp
}

// ResolveRenderTargetPassAttachmentSlot requests a single-sampled resolve of
// the render target in slot of rp. Repeated calls for the same pass and slot
// return the same ID.
func (b *GraphBuilder) ResolveRenderTargetPassAttachmentSlot(rp *RenderPass, slot AttachmentSlot) ResolveTextureID {
	const op = "ResolveRenderTargetPassAttachmentSlot"
	b.checkOpen(op)
	assert(rp != nil && rp.b == b, op, ErrStaleHandle, "pass belongs to another builder")
	return b.resolveSlot(op, rp.p, slot)
}

func (b *GraphBuilder) resolveSlot(op string, p *pass, slot AttachmentSlot) ResolveTextureID {
	assert(slot.valid(), op, ErrInvalidHandle, "slot %d", int(slot))
	rtID := p.attachments[slot].renderTargetID
	assert(rtID.IsValid(), op, ErrSlotNotAttached, "pass %q slot %s has no render target", p.debugName, slot)
	assert(p.resolveOutputExternal[slot] == nil, op, ErrResolveConflict, "pass %q slot %s", p.debugName, slot)

	if id := p.resolveOutputIDs[slot]; id.IsValid() {
		return id
	}
	id := ResolveTextureID{index: int32(len(b.g.resolveSources)), generation: b.g.generation}
	b.g.resolveSources = append(b.g.resolveSources, rtID)
	b.g.resolveProducers = append(b.g.resolveProducers, p)
	p.resolveOutputIDs[slot] = id
	return id
}

// lastWriter scans the pass list backward for the most recent pass that
// attached id.
func (b *GraphBuilder) lastWriter(id RenderTargetID) (*pass, AttachmentSlot, bool) {
	for i := len(b.g.passes) - 1; i >= 0; i-- {
		p := b.g.passes[i]
		for s := range NumAttachmentSlots {
			if p.attachments[s].renderTargetID == id {
				return p, AttachmentSlot(s), true
			}
		}
	}
	return nil, 0, false
}

// ResolveRenderTarget resolves id as written by the most recent pass that
// attached it.
func (b *GraphBuilder) ResolveRenderTarget(id RenderTargetID) ResolveTextureID {
	const op = "ResolveRenderTarget"
	b.checkOpen(op)
	b.checkRenderTargetID(op, id)
	p, slot, ok := b.lastWriter(id)
	assert(ok, op, ErrRenderTargetNotAttached, "%q", b.g.debugNames[id.index])
	return b.resolveSlot(op, p, slot)
}

// ResolveRenderTargetToExternalTexture resolves id, as written by the most
// recent pass that attached it, directly into a caller-owned texture.
func (b *GraphBuilder) ResolveRenderTargetToExternalTexture(id RenderTargetID, tex ExternalTexture) {
	const op = "ResolveRenderTargetToExternalTexture"
	b.checkOpen(op)
	b.checkRenderTargetID(op, id)
	assert(tex.Texture != nil, op, ErrInvalidHandle, "nil texture")
	p, slot, ok := b.lastWriter(id)
	assert(ok, op, ErrRenderTargetNotAttached, "%q", b.g.debugNames[id.index])
	assert(!p.resolveOutputIDs[slot].IsValid(), op, ErrResolveConflict, "pass %q slot %s", p.debugName, slot)
	ext := tex
	p.resolveOutputExternal[slot] = &ext
}

// PushDebugThumbnail asks for a snapshot of id as written by the most recent
// pass that attached it. Without WithDebugThumbnails the request is only
// recorded; with it, the slot is resolved and copied after the pass.
func (b *GraphBuilder) PushDebugThumbnail(id RenderTargetID, label string) {
	const op = "PushDebugThumbnail"
	b.checkOpen(op)
	b.checkRenderTargetID(op, id)
	p, slot, ok := b.lastWriter(id)
	if !ok {
		slogger().Debug("framegraph: thumbnail of unattached target ignored", "target", b.g.debugNames[id.index])
		return
	}
	if label == "" {
		label = b.g.debugNames[id.index]
	}
	b.g.thumbnails = append(b.g.thumbnails, thumbnailRequest{pass: p, slot: slot, label: label, id: id})
	if b.r.opts.thumbnails && !p.thumbnails[slot] {
		p.thumbnails[slot] = true
		if p.resolveOutputExternal[slot] == nil && b.g.descriptions[id.index].SampleCount > 1 && slot == SlotDepthStencil {
			return
		}
		if p.resolveOutputExternal[slot] == nil {
			b.resolveSlot(op, p, slot)
		}
	}
}
