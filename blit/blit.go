// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package blit copies a resolved texture into a render target by drawing a
// fullscreen triangle that samples it.
//
// A Blitter owns the shader, layouts and sampler, and caches one render
// pipeline per (format, sample count) combination it has drawn into:
//
//	bl, err := blit.New(r.Device())
//	...
//	b.PushPass(scene)
//	src := b.ResolveRenderTarget(sceneID)
//	bl.PushBlit(b, src, presentID, "present")
package blit

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
)

// Fullscreen-triangle shader sampling the source texture.
//
//go:embed shaders/blit.wgsl
var shaderSource string

type pipelineKey struct {
	format  gputypes.TextureFormat
	samples uint32
}

// Blitter draws resolve textures into render targets.
type Blitter struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipelines  map[pipelineKey]hal.RenderPipeline

	// Bind groups created for the frame being executed. They are released
	// when the next frame starts drawing or when the Blitter is destroyed.
	pending []hal.BindGroup
	frame   uint64
}

// New compiles the blit shader and creates the pipeline layout and sampler
// on device. Pipelines are created lazily per target format.
func New(device hal.Device) (*Blitter, error) {
	if device == nil {
		return nil, framegraph.ErrNilDevice
	}
	b := &Blitter{device: device, pipelines: make(map[pipelineKey]hal.RenderPipeline)}
	if err := b.init(); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// compileShader compiles WGSL to SPIR-V words.
func compileShader(src string) ([]uint32, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile blit shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirv)/4)
	for i := range code {
		code[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return code, nil
}

func (b *Blitter) init() error {
	if shaderSource == "" {
		return fmt.Errorf("blit shader source is empty")
	}
	code, err := compileShader(shaderSource)
	if err != nil {
		return err
	}
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blit_shader",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("create blit shader module: %w", err)
	}
	b.shader = shader

	// Binding 0: source texture, binding 1: sampler.
	bindLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group layout: %w", err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{b.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	sampler, err := b.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create blit sampler: %w", err)
	}
	b.sampler = sampler
	return nil
}

// pipeline returns the cached pipeline for the target, creating it on
// first use.
func (b *Blitter) pipeline(format gputypes.TextureFormat, samples uint32) (hal.RenderPipeline, error) {
	key := pipelineKey{format: format, samples: samples}
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}
	p, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("blit_pipeline_%s_x%d", format, samples),
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     b.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create blit pipeline %s x%d: %w", format, samples, err)
	}
	b.pipelines[key] = p
	framegraph.Logger().Debug("blit: pipeline created", "format", format.String(), "samples", samples)
	return p, nil
}

// Pipelines returns the number of cached pipelines.
func (b *Blitter) Pipelines() int { return len(b.pipelines) }

// PushBlit adds a render pass named name that draws src over the whole of
// dst. The previous contents of dst are loaded or cleared according to its
// description; the blit overwrites every texel covered by the viewport.
//
// Errors creating the pipeline or bind group are logged and the draw is
// skipped; the pass still runs so the scheduling of dst is unaffected.
func (b *Blitter) PushBlit(gb *framegraph.GraphBuilder, src framegraph.ResolveTextureID, dst framegraph.RenderTargetID, name string) *framegraph.RenderPass {
	return gb.PushPass(func(p *framegraph.RenderPass) {
		p.SetDebugName(name)
		p.AttachRenderTargetID(framegraph.SlotColor0, dst)
		p.AttachResolveTexture(src)
		p.Exec(func(enc hal.RenderPassEncoder, s *framegraph.PassScope) {
			if err := b.draw(enc, s, src); err != nil {
				framegraph.Logger().Warn("blit: draw skipped", "pass", s.PassName(), "err", err)
			}
		})
	})
}

func (b *Blitter) draw(enc hal.RenderPassEncoder, s *framegraph.PassScope, src framegraph.ResolveTextureID) error {
	_, _, samples := s.Size()
	pipeline, err := b.pipeline(s.Format(framegraph.SlotColor0), samples)
	if err != nil {
		return err
	}
	group, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind_group",
		Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: s.ResolveTextureView(src).NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: b.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group: %w", err)
	}
	b.track(s.Frame(), group)

	enc.SetPipeline(pipeline)
	enc.SetBindGroup(0, group, nil)
	enc.Draw(3, 1, 0, 0)
	return nil
}

// track keeps group alive until a later frame draws. The host is expected
// to have waited on a frame's submissions before executing the next one.
func (b *Blitter) track(frame uint64, group hal.BindGroup) {
	if frame != b.frame {
		b.releaseGroups()
		b.frame = frame
	}
	b.pending = append(b.pending, group)
}

func (b *Blitter) releaseGroups() {
	for _, g := range b.pending {
		b.device.DestroyBindGroup(g)
	}
	b.pending = b.pending[:0]
}

// Destroy releases every GPU object owned by the Blitter. The device must be
// idle. Safe to call more than once.
func (b *Blitter) Destroy() {
	if b.device == nil {
		return
	}
	b.releaseGroups()
	for k, p := range b.pipelines {
		b.device.DestroyRenderPipeline(p)
		delete(b.pipelines, k)
	}
	if b.sampler != nil {
		b.device.DestroySampler(b.sampler)
		b.sampler = nil
	}
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.shader != nil {
		b.device.DestroyShaderModule(b.shader)
		b.shader = nil
	}
}
