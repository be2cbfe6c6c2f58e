// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// renderTargetKey is the structural identity used to match pooled render targets.
type renderTargetKey struct {
	format      gputypes.TextureFormat
	width       uint32
	height      uint32
	numLevels   uint32
	sampleCount uint32
}

func keyForDescription(d *RenderTargetDescription) renderTargetKey {
	return renderTargetKey{
		format:      d.Format,
		width:       d.Width,
		height:      d.Height,
		numLevels:   d.NumLevels,
		sampleCount: d.SampleCount,
	}
}

// textureKey is the structural identity of a pooled single-sampled texture.
type textureKey struct {
	format gputypes.TextureFormat
	width  uint32
	height uint32
}

// AttachmentView selects the mip level and array layer a pass renders into.
// The zero value is level 0, layer 0.
type AttachmentView struct {
	Level uint32
	Layer uint32
}

// RenderTarget is a pooled, attachable backing resource.
//
// A multisampled target (SampleCount > 1) is backed only by a multisampled
// attachment texture; it exposes no sampleable texture and must be resolved
// before a later pass can read it. A single-sampled target is backed by a
// sampleable texture and render-target views onto it.
type RenderTarget struct {
	Format      gputypes.TextureFormat
	Width       uint32
	Height      uint32
	NumLevels   uint32
	SampleCount uint32

	texture hal.Texture
	views   map[AttachmentView]hal.TextureView

	// sampleView is a full view for binding a single-sampled target as a
	// shader input when its resolve is elided.
	sampleView hal.TextureView

	needsClear bool
	debugName  string

	// lastUse is the index of the last submission that referenced the target.
	lastUse uint64
}

func newRenderTarget(device hal.Device, d *RenderTargetDescription, label string) (*RenderTarget, error) {
	usage := gputypes.TextureUsageRenderAttachment
	if d.SampleCount == 1 {
		usage |= gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: d.Width, Height: d.Height, DepthOrArrayLayers: 1},
		MipLevelCount: d.NumLevels,
		SampleCount:   d.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create render target texture %q: %w", label, err)
	}

	rt := &RenderTarget{
		Format:      d.Format,
		Width:       d.Width,
		Height:      d.Height,
		NumLevels:   d.NumLevels,
		SampleCount: d.SampleCount,
		texture:     tex,
		views:       make(map[AttachmentView]hal.TextureView),
		needsClear:  true,
		debugName:   label,
	}

	if d.SampleCount == 1 {
		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         label + "_sample_view",
			Format:        d.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        aspectFor(d.Format),
			MipLevelCount: d.NumLevels,
		})
		if err != nil {
			device.DestroyTexture(tex)
			return nil, fmt.Errorf("create render target view %q: %w", label, err)
		}
		rt.sampleView = view
	}
	return rt, nil
}

// Texture returns the sampleable backing texture, or nil for multisampled targets.
func (rt *RenderTarget) Texture() hal.Texture {
	if rt.SampleCount > 1 {
		return nil
	}
	return rt.texture
}

// DebugName returns the name of the graph target this resource last backed.
func (rt *RenderTarget) DebugName() string { return rt.debugName }

// NeedsClear reports whether the contents are stale and should be cleared
// on the next attachment.
func (rt *RenderTarget) NeedsClear() bool { return rt.needsClear }

// attachmentView returns (creating on first use) the single-level view the
// pass renders into.
func (rt *RenderTarget) attachmentView(device hal.Device, v AttachmentView) (hal.TextureView, error) {
	if view, ok := rt.views[v]; ok {
		return view, nil
	}
	view, err := device.CreateTextureView(rt.texture, &hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s_rtv_l%d_z%d", rt.debugName, v.Level, v.Layer),
		Format:          rt.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspectFor(rt.Format),
		BaseMipLevel:    v.Level,
		MipLevelCount:   1,
		BaseArrayLayer:  v.Layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment view for %q: %w", rt.debugName, err)
	}
	rt.views[v] = view
	return view, nil
}

func (rt *RenderTarget) destroy(device hal.Device) {
	for v, view := range rt.views {
		device.DestroyTextureView(view)
		delete(rt.views, v)
	}
	if rt.sampleView != nil {
		device.DestroyTextureView(rt.sampleView)
		rt.sampleView = nil
	}
	if rt.texture != nil {
		device.DestroyTexture(rt.texture)
		rt.texture = nil
	}
}

// SingleSampledTexture is a pooled resolve destination. It is always
// single-sampled and sampleable.
type SingleSampledTexture struct {
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32

	texture hal.Texture
	view    hal.TextureView
	lastUse uint64

	// usage is the state the last encoded pass left the texture in; zero
	// until first written.
	usage gputypes.TextureUsage
}

func newSingleSampledTexture(device hal.Device, k textureKey, label string) (*SingleSampledTexture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: k.width, Height: k.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        k.format,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create resolve texture %q: %w", label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        k.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        aspectFor(k.format),
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create resolve texture view %q: %w", label, err)
	}
	return &SingleSampledTexture{
		Format:  k.format,
		Width:   k.width,
		Height:  k.height,
		texture: tex,
		view:    view,
	}, nil
}

// Texture returns the backing texture.
func (t *SingleSampledTexture) Texture() hal.Texture { return t.texture }

// View returns a full view of the backing texture.
func (t *SingleSampledTexture) View() hal.TextureView { return t.view }

func (t *SingleSampledTexture) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		device.DestroyTexture(t.texture)
		t.texture = nil
	}
}

func aspectFor(f gputypes.TextureFormat) gputypes.TextureAspect {
	if f.IsDepthStencil() {
		if f.HasDepth() && !f.HasStencil() {
			return gputypes.TextureAspectDepthOnly
		}
		if f.HasStencil() && !f.HasDepth() {
			return gputypes.TextureAspectStencilOnly
		}
	}
	return gputypes.TextureAspectAll
}
