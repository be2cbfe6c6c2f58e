// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package haltest provides a recording HAL device for tests.
//
// Device and Queue wrap the hal/noop backend. Every texture and view gets a
// distinct identity, creations and destructions are counted, and render
// pass descriptors, texture copies, barriers and submissions are recorded
// so tests can assert on what a frame asked the GPU to do.
package haltest

import (
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Texture is a noop texture with an identity.
type Texture struct {
	noop.Texture
	ID        int
	Desc      hal.TextureDescriptor
	Destroyed bool

	// Fill is the RGBA8 texel value every texel holds. Copies propagate it
	// and CopyTextureToBuffer writes it into the destination buffer.
	Fill [4]byte
}

// NativeHandle returns the texture ID.
func (t *Texture) NativeHandle() uintptr { return uintptr(t.ID) }

// TextureView is a noop view with an identity.
type TextureView struct {
	noop.Resource
	ID        int
	Texture   *Texture
	Desc      hal.TextureViewDescriptor
	Destroyed bool
}

// NativeHandle returns the view ID.
func (v *TextureView) NativeHandle() uintptr { return uintptr(v.ID) }

// RenderPassRecord is a copy of a render pass descriptor.
type RenderPassRecord struct {
	Label  string
	Colors []hal.RenderPassColorAttachment
	Depth  *hal.RenderPassDepthStencilAttachment
}

// CopyRecord is one CopyTextureToTexture region.
type CopyRecord struct {
	Src, Dst *Texture
	SrcLevel uint32
	Width    uint32
	Height   uint32
}

// Device is a recording hal.Device.
type Device struct {
	noop.Device

	nextID int

	Textures []*Texture
	Views    []*TextureView

	TexturesCreated   int
	TexturesDestroyed int
	ViewsCreated      int
	ViewsDestroyed    int

	EncodersCreated     int
	CommandBuffersFreed int
	ComputePasses       int

	ShaderModulesCreated int
	PipelinesCreated     int
	PipelinesDestroyed   int
	BindGroupsCreated    int
	BindGroupsDestroyed  int
	BuffersCreated       int
	BuffersDestroyed     int
	Draws                int

	// BindGroups holds the entries of every bind group created.
	BindGroups [][]gputypes.BindGroupEntry
	// Pipelines holds every render pipeline descriptor.
	Pipelines []hal.RenderPipelineDescriptor

	RenderPasses []RenderPassRecord
	Copies       []CopyRecord
	Barriers     []hal.TextureBarrier

	// FailTexture, when set, is returned by CreateTexture once
	// TexturesCreated reaches FailAfter.
	FailTexture error
	FailAfter   int
}

// New returns a recording device and its queue.
func New() (*Device, *Queue) {
	return &Device{}, &Queue{}
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

// CreateTexture creates a texture with a fresh ID.
func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.FailTexture != nil && d.TexturesCreated >= d.FailAfter {
		return nil, d.FailTexture
	}
	t := &Texture{ID: d.id(), Desc: *desc}
	d.Textures = append(d.Textures, t)
	d.TexturesCreated++
	return t, nil
}

// DestroyTexture marks the texture destroyed.
func (d *Device) DestroyTexture(t hal.Texture) {
	if tt, ok := t.(*Texture); ok && !tt.Destroyed {
		tt.Destroyed = true
		d.TexturesDestroyed++
	}
}

// CreateTextureView creates a view with a fresh ID.
func (d *Device) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	v := &TextureView{ID: d.id(), Desc: *desc}
	v.Texture, _ = t.(*Texture)
	d.Views = append(d.Views, v)
	d.ViewsCreated++
	return v, nil
}

// DestroyTextureView marks the view destroyed.
func (d *Device) DestroyTextureView(v hal.TextureView) {
	if vv, ok := v.(*TextureView); ok && !vv.Destroyed {
		vv.Destroyed = true
		d.ViewsDestroyed++
	}
}

// CreateCommandEncoder returns a recording encoder.
func (d *Device) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	d.EncodersCreated++
	return &CommandEncoder{dev: d}, nil
}

// FreeCommandBuffer counts freed command buffers.
func (d *Device) FreeCommandBuffer(hal.CommandBuffer) {
	d.CommandBuffersFreed++
}

// CreateShaderModule counts shader modules.
func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.ShaderModulesCreated++
	return d.Device.CreateShaderModule(desc)
}

// CreateRenderPipeline records desc.
func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.PipelinesCreated++
	d.Pipelines = append(d.Pipelines, *desc)
	return d.Device.CreateRenderPipeline(desc)
}

// DestroyRenderPipeline counts destroyed pipelines.
func (d *Device) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.PipelinesDestroyed++
	d.Device.DestroyRenderPipeline(p)
}

// CreateBindGroup records the entries of desc.
func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.BindGroupsCreated++
	d.BindGroups = append(d.BindGroups, append([]gputypes.BindGroupEntry(nil), desc.Entries...))
	return d.Device.CreateBindGroup(desc)
}

// DestroyBindGroup counts destroyed bind groups.
func (d *Device) DestroyBindGroup(g hal.BindGroup) {
	d.BindGroupsDestroyed++
	d.Device.DestroyBindGroup(g)
}

// CreateBuffer counts buffers.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.BuffersCreated++
	return d.Device.CreateBuffer(desc)
}

// DestroyBuffer counts destroyed buffers.
func (d *Device) DestroyBuffer(b hal.Buffer) {
	d.BuffersDestroyed++
	d.Device.DestroyBuffer(b)
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int { return d.TexturesCreated - d.TexturesDestroyed }

// LiveViews returns the number of views not yet destroyed.
func (d *Device) LiveViews() int { return d.ViewsCreated - d.ViewsDestroyed }

// TextureOf returns the texture a view was created from.
func TextureOf(v hal.TextureView) *Texture {
	if vv, ok := v.(*TextureView); ok {
		return vv.Texture
	}
	return nil
}

// CommandEncoder is a recording hal.CommandEncoder.
type CommandEncoder struct {
	noop.CommandEncoder
	dev *Device
}

// BeginRenderPass records desc.
func (e *CommandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	rec := RenderPassRecord{
		Label:  desc.Label,
		Colors: append([]hal.RenderPassColorAttachment(nil), desc.ColorAttachments...),
	}
	if desc.DepthStencilAttachment != nil {
		ds := *desc.DepthStencilAttachment
		rec.Depth = &ds
	}
	e.dev.RenderPasses = append(e.dev.RenderPasses, rec)
	return &RenderPassEncoder{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), dev: e.dev}
}

// RenderPassEncoder counts draws.
type RenderPassEncoder struct {
	hal.RenderPassEncoder
	dev *Device
}

// Draw counts the draw.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.dev.Draws++
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// TransitionTextures records the barriers.
func (e *CommandEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.dev.Barriers = append(e.dev.Barriers, barriers...)
}

// BeginComputePass counts compute passes.
func (e *CommandEncoder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.dev.ComputePasses++
	return e.CommandEncoder.BeginComputePass(desc)
}

// CopyTextureToTexture records each region.
func (e *CommandEncoder) CopyTextureToTexture(src, dst hal.Texture, regions []hal.TextureCopy) {
	s, _ := src.(*Texture)
	t, _ := dst.(*Texture)
	for _, r := range regions {
		e.dev.Copies = append(e.dev.Copies, CopyRecord{
			Src: s, Dst: t, SrcLevel: r.SrcBase.MipLevel, Width: r.Size.Width, Height: r.Size.Height,
		})
	}
	if s != nil && t != nil {
		t.Fill = s.Fill
	}
}

// CopyTextureToBuffer writes the source Fill value into every texel of
// each region, honoring the region's row pitch.
func (e *CommandEncoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	s, _ := src.(*Texture)
	if s == nil {
		return
	}
	for _, r := range regions {
		l := r.BufferLayout
		size := uint64(l.BytesPerRow) * uint64(r.Size.Height)
		m, err := e.dev.MapBuffer(dst, l.Offset, size)
		if err != nil {
			continue
		}
		data := unsafe.Slice((*byte)(m.Ptr), size)
		for y := range r.Size.Height {
			row := data[y*l.BytesPerRow:]
			for x := range r.Size.Width {
				copy(row[x*4:x*4+4], s.Fill[:])
			}
		}
	}
}

// Queue is a counting hal.Queue.
//
// By default every submission completes at once. With Stalled set,
// PollCompleted reports only the submissions made before the last call to
// Complete.
type Queue struct {
	noop.Queue
	Submissions int
	Stalled     bool

	completed uint64
}

// Submit counts the submission.
func (q *Queue) Submit(bufs []hal.CommandBuffer) (uint64, error) {
	q.Submissions++
	return q.Queue.Submit(bufs)
}

// PollCompleted returns the highest completed submission index.
func (q *Queue) PollCompleted() uint64 {
	if q.Stalled {
		return q.completed
	}
	return q.Queue.PollCompleted()
}

// Complete finishes every submission made so far.
func (q *Queue) Complete() {
	q.completed = q.Queue.PollCompleted()
}

// Color returns an opaque color for tests.
func Color(r, g, b float64) gputypes.Color {
	return gputypes.Color{R: r, G: g, B: b, A: 1}
}
