// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// resolvedTexture is the materialized form of one ResolveTextureID.
type resolvedTexture struct {
	texture      hal.Texture
	view         hal.TextureView
	target       *RenderTarget
	single       *SingleSampledTexture
	materialized bool
	returned     bool
}

// scheduledGraph is a graph whose passes carry their scheduling decisions.
// It only exists inside Execute.
type scheduledGraph struct {
	*graph

	outputCount     []int
	resolveCount    []int
	resolveUseCount []int
	resolved        []resolvedTexture
	leased          int
	ownedViews      []hal.TextureView

	allocated int
	reused    int
	evicted   int
}

func newScheduledGraph(g *graph) *scheduledGraph {
	return &scheduledGraph{
		graph:           g,
		outputCount:     make([]int, len(g.descriptions)),
		resolveCount:    make([]int, len(g.descriptions)),
		resolveUseCount: make([]int, len(g.resolveSources)),
		resolved:        make([]resolvedTexture, len(g.resolveSources)),
	}
}

// schedule runs every scheduling phase over g. On a device error every
// resource leased so far is returned to its pool and the error is returned.
func (r *Renderer) schedule(g *graph) (*scheduledGraph, error) {
	assert(len(r.alive) == 0, "schedule", ErrReferenceLeak, "%d render targets alive before scheduling", len(r.alive))

	sg := newScheduledGraph(g)
	r.renderTargets.Age()
	r.textures.Age()

	sg.count()
	for _, p := range g.passes {
		if err := r.allocatePass(sg, p); err != nil {
			r.rollback(sg)
			return nil, fmt.Errorf("schedule pass %q: %w", p.debugName, err)
		}
	}
	sg.checkConsistency(r)

	sg.evicted = r.renderTargets.Evict(r.opts.evictionAge) + r.textures.Evict(r.opts.evictionAge)
	if sg.evicted > 0 {
		slogger().Debug("framegraph: evicted pooled resources", "count", sg.evicted, "generation", g.generation)
	}
	return sg, nil
}

// count computes output and resolve reference counts for every render target.
func (sg *scheduledGraph) count() {
	for _, p := range sg.passes {
		for s := range NumAttachmentSlots {
			id := p.attachments[s].renderTargetID
			if !id.IsValid() {
				continue
			}
			sg.outputCount[id.index]++
			if p.extraRefs[s] {
				sg.outputCount[id.index]++
			}
		}
		for _, rid := range p.resolveInputIDs {
			sg.resolveUseCount[rid.index]++
			sg.resolveCount[sg.resolveSources[rid.index].index]++
		}
	}
}

func (r *Renderer) allocatePass(sg *scheduledGraph, p *pass) error {
	p.sched = passSchedule{}
	sched := &p.sched

	if p.kind == PassKindRender {
		var first *slotSchedule
		for s := range NumAttachmentSlots {
			slot := AttachmentSlot(s)
			a := &p.attachments[s]
			ss := &sched.slots[s]
			var err error
			switch {
			case a.renderTargetID.IsValid():
				err = r.allocateRenderTargetSlot(sg, p, slot, ss)
			case a.external != nil:
				err = r.allocateExternalSlot(sg, a, ss)
			default:
				continue
			}
			if err != nil {
				return err
			}
			if first == nil {
				first = ss
				continue
			}
			assert(ss.width == first.width && ss.height == first.height && ss.sampleCount == first.sampleCount,
				"schedule", ErrDimensionMismatch, "pass %q slot %s is %dx%d@%d, expected %dx%d@%d",
				p.debugName, slot, ss.width, ss.height, ss.sampleCount, first.width, first.height, first.sampleCount)
		}
		if first != nil {
			sched.width, sched.height, sched.sampleCount = first.width, first.height, first.sampleCount
			w, h := float32(first.width), float32(first.height)
			sched.viewport = [4]float32{p.viewport.X * w, p.viewport.Y * h, p.viewport.W * w, p.viewport.H * h}
		}
	}

	sg.materializeInputs(r, p)
	sg.releaseOutputs(r, p)
	return nil
}

func (r *Renderer) allocateRenderTargetSlot(sg *scheduledGraph, p *pass, slot AttachmentSlot, ss *slotSchedule) error {
	a := &p.attachments[slot]
	idx := a.renderTargetID.index
	desc := &sg.descriptions[idx]
	name := sg.debugNames[idx]

	rt, err := r.acquireRenderTarget(sg, idx, desc, name)
	if err != nil {
		return err
	}
	view, err := rt.attachmentView(r.device, a.view)
	if err != nil {
		return err
	}

	ss.renderTarget = rt
	ss.view = view
	ss.level = a.view.Level
	ss.width, ss.height = levelSize(desc.Width, desc.Height, a.view.Level)
	ss.sampleCount = desc.SampleCount
	ss.format = desc.Format
	ss.setLoadOps(rt.needsClear, desc.ClearColor, desc.ClearDepth, desc.ClearStencil)
	rt.needsClear = false

	own := 1
	if p.extraRefs[slot] {
		own++
	}
	lastWriter := sg.outputCount[idx] == own
	ss.store = sg.outputCount[idx] > 1

	if rid := p.resolveOutputIDs[slot]; rid.IsValid() {
		res := &sg.resolved[rid.index]
		if desc.SampleCount == 1 && lastWriter {
			ss.resolveMode = ResolveElided
			ss.store = true
			res.texture, res.view, res.target = rt.texture, rt.sampleView, rt
		} else {
			assert(desc.SampleCount == 1 || slot != SlotDepthStencil, "schedule", ErrDepthResolveUnsupported,
				"pass %q target %q", p.debugName, name)
			t, err := r.acquireTexture(sg, textureKey{desc.Format, ss.width, ss.height}, name)
			if err != nil {
				return err
			}
			res.single = t
			res.texture, res.view = t.texture, t.view
			if desc.SampleCount > 1 {
				ss.resolveMode = ResolveAttachment
			} else {
				ss.resolveMode = ResolveCopy
				ss.store = true
			}
		}
		res.materialized = true
		ss.resolveTexture, ss.resolveView, ss.resolveSingle = res.texture, res.view, res.single
		return nil
	}

	if ext := p.resolveOutputExternal[slot]; ext != nil {
		assert(desc.SampleCount == 1 || slot != SlotDepthStencil, "schedule", ErrDepthResolveUnsupported,
			"pass %q target %q", p.debugName, name)
		view, owned, err := r.externalView(sg, ext, "resolve")
		if err != nil {
			return err
		}
		ss.resolveTexture, ss.resolveView, ss.resolveOwned = ext.Texture, view, owned
		if desc.SampleCount > 1 {
			ss.resolveMode = ResolveAttachment
		} else {
			ss.resolveMode = ResolveCopy
			ss.store = true
		}
	}
	return nil
}

func (r *Renderer) allocateExternalSlot(sg *scheduledGraph, a *attachment, ss *slotSchedule) error {
	ext := a.external
	view, owned, err := r.externalView(sg, ext, "attachment")
	if err != nil {
		return err
	}
	ss.external = ext
	ss.view = view
	ss.ownedView = owned
	ss.width, ss.height, ss.sampleCount = ext.Width, ext.Height, ext.samples()
	ss.format = ext.Format
	if a.clear != nil {
		ss.setLoadOps(true, a.clear.Color, a.clear.Depth, a.clear.Stencil)
	} else {
		ss.setLoadOps(false, LoadColor, LoadDepth, LoadStencil)
	}
	ss.store = true
	return nil
}

func (r *Renderer) externalView(sg *scheduledGraph, ext *ExternalTexture, kind string) (hal.TextureView, bool, error) {
	if ext.View != nil {
		return ext.View, false, nil
	}
	view, err := r.device.CreateTextureView(ext.Texture, &hal.TextureViewDescriptor{
		Label:           r.label("external", kind),
		Format:          ext.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspectFor(ext.Format),
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create external %s view: %w", kind, err)
	}
	sg.ownedViews = append(sg.ownedViews, view)
	return view, true, nil
}

// setLoadOps picks clear or load for each aspect. A target whose previous
// contents are meaningless (fresh) uses the description's clear values.
func (ss *slotSchedule) setLoadOps(fresh bool, c ColorClear, d DepthClear, s StencilClear) {
	ss.colorLoad, ss.depthLoad, ss.stencilLoad = gputypes.LoadOpLoad, gputypes.LoadOpLoad, gputypes.LoadOpLoad
	if !fresh {
		return
	}
	if !c.Load {
		ss.colorLoad, ss.clearColor = gputypes.LoadOpClear, c.Color
	}
	if !d.Load {
		ss.depthLoad, ss.clearDepth = gputypes.LoadOpClear, d.Depth
	}
	if !s.Load {
		ss.stencilLoad, ss.clearStencil = gputypes.LoadOpClear, s.Stencil
	}
}

func (sg *scheduledGraph) materializeInputs(r *Renderer, p *pass) {
	const op = "schedule"
	p.sched.inputs = make([]resolvedInput, len(p.resolveInputIDs))
	for i, rid := range p.resolveInputIDs {
		producer := sg.resolveProducers[rid.index]
		res := &sg.resolved[rid.index]
		assert(producer.index < p.index && res.materialized, op, ErrResolveNotReady,
			"pass %q reads %s produced by pass %q", p.debugName, rid, producer.debugName)

		p.sched.inputs[i] = resolvedInput{texture: res.texture, view: res.view, target: res.target, single: res.single}

		sg.resolveUseCount[rid.index]--
		assert(sg.resolveUseCount[rid.index] >= 0, op, ErrReferenceLeak, "%s use count negative", rid)
		if sg.resolveUseCount[rid.index] == 0 {
			r.returnResolve(sg, res)
		}

		src := sg.resolveSources[rid.index].index
		sg.resolveCount[src]--
		assert(sg.resolveCount[src] >= 0, op, ErrReferenceLeak, "%q resolve count negative", sg.debugNames[src])
		r.maybeRelease(sg, src)
	}
}

func (sg *scheduledGraph) releaseOutputs(r *Renderer, p *pass) {
	for s := range NumAttachmentSlots {
		id := p.attachments[s].renderTargetID
		if !id.IsValid() {
			continue
		}
		n := 1
		if p.extraRefs[s] {
			n++
		}
		sg.outputCount[id.index] -= n
		assert(sg.outputCount[id.index] >= 0, "schedule", ErrReferenceLeak,
			"%q output count negative", sg.debugNames[id.index])
		r.maybeRelease(sg, id.index)
	}
	for s := range NumAttachmentSlots {
		rid := p.resolveOutputIDs[s]
		if rid.IsValid() && sg.resolveUseCount[rid.index] == 0 {
			r.returnResolve(sg, &sg.resolved[rid.index])
		}
	}
}

func (r *Renderer) maybeRelease(sg *scheduledGraph, idx int32) {
	if sg.outputCount[idx] == 0 && sg.resolveCount[idx] == 0 {
		r.releaseRenderTarget(idx)
	}
}

// releaseRenderTarget is the only path that moves a render target from the
// alive map back to its pool.
func (r *Renderer) releaseRenderTarget(idx int32) {
	rt, ok := r.alive[idx]
	assert(ok, "releaseRenderTarget", ErrReferenceLeak, "render target %d released twice", idx)
	delete(r.alive, idx)
	rt.needsClear = true
	r.renderTargets.Release(rt)
}

func (r *Renderer) returnResolve(sg *scheduledGraph, res *resolvedTexture) {
	if res.single == nil || res.returned {
		return
	}
	res.returned = true
	sg.leased--
	r.textures.Release(res.single)
}

func (r *Renderer) acquireRenderTarget(sg *scheduledGraph, idx int32, desc *RenderTargetDescription, name string) (*RenderTarget, error) {
	if rt, ok := r.alive[idx]; ok {
		return rt, nil
	}
	rt, ok := r.renderTargets.Acquire(keyForDescription(desc))
	if ok {
		sg.reused++
		slogger().Debug("framegraph: reuse render target", "name", name, "previous", rt.debugName)
	} else {
		var err error
		rt, err = newRenderTarget(r.device, desc, r.label("rt", name))
		if err != nil {
			return nil, err
		}
		sg.allocated++
		r.counters.renderTargetsCreated++
		slogger().Debug("framegraph: allocate render target", "name", name, "format", desc.Format,
			"width", desc.Width, "height", desc.Height, "samples", desc.SampleCount, "levels", desc.NumLevels)
	}
	rt.debugName = name
	r.alive[idx] = rt
	return rt, nil
}

func (r *Renderer) acquireTexture(sg *scheduledGraph, k textureKey, name string) (*SingleSampledTexture, error) {
	t, ok := r.textures.Acquire(k)
	if ok {
		sg.reused++
	} else {
		var err error
		t, err = newSingleSampledTexture(r.device, k, r.label("resolve", name))
		if err != nil {
			return nil, err
		}
		sg.allocated++
		r.counters.texturesCreated++
		slogger().Debug("framegraph: allocate resolve texture", "source", name, "format", k.format,
			"width", k.width, "height", k.height)
	}
	sg.leased++
	return t, nil
}

// rollback returns everything leased by a partially scheduled graph. Views
// created for external textures were never submitted and are destroyed
// right away.
func (r *Renderer) rollback(sg *scheduledGraph) {
	for _, idx := range slices.Sorted(maps.Keys(r.alive)) {
		r.releaseRenderTarget(idx)
	}
	for i := range sg.resolved {
		r.returnResolve(sg, &sg.resolved[i])
	}
	sg.destroyOwnedViews(r.device)
	slogger().Warn("framegraph: scheduling rolled back", "generation", sg.generation)
}

func (sg *scheduledGraph) destroyOwnedViews(device hal.Device) {
	for _, v := range sg.ownedViews {
		device.DestroyTextureView(v)
	}
	sg.ownedViews = nil
}

func (sg *scheduledGraph) checkConsistency(r *Renderer) {
	const op = "schedule"
	for i, n := range sg.outputCount {
		assert(n == 0, op, ErrReferenceLeak, "%q output count %d", sg.debugNames[i], n)
	}
	for i, n := range sg.resolveCount {
		assert(n == 0, op, ErrReferenceLeak, "%q resolve count %d", sg.debugNames[i], n)
	}
	for i, n := range sg.resolveUseCount {
		assert(n == 0, op, ErrReferenceLeak, "resolve %d use count %d", i, n)
	}
	assert(len(r.alive) == 0, op, ErrReferenceLeak, "%d render targets alive after scheduling", len(r.alive))
	assert(sg.leased == 0, op, ErrReferenceLeak, "%d resolve textures leased after scheduling", sg.leased)
}
