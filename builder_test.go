// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestDescriptionBuilders(t *testing.T) {
	base := NewRenderTargetDescription(gputypes.TextureFormatRGBA8Unorm)
	d := base.WithDimensions(640, 480, 4).WithLevels(2).WithClearColor(ClearColor(gputypes.Color{R: 1}))

	if base.Width != 0 || base.ClearColor != LoadColor {
		t.Error("With* mutated the receiver")
	}
	if d.Width != 640 || d.Height != 480 || d.SampleCount != 4 || d.NumLevels != 2 || d.ClearColor.Load {
		t.Errorf("description %+v", d)
	}
	cp := NewRenderTargetDescription(gputypes.TextureFormatDepth32Float).CopyDimensions(d)
	if cp.Width != 640 || cp.Height != 480 || cp.SampleCount != 4 || cp.NumLevels != 1 {
		t.Errorf("CopyDimensions = %+v", cp)
	}

	tests := []struct {
		name string
		desc RenderTargetDescription
		ok   bool
	}{
		{"valid", d, true},
		{"zero size", base, false},
		{"zero samples", base.WithDimensions(1, 1, 0), false},
		{"zero levels", d.WithLevels(0), false},
		{"undefined format", NewRenderTargetDescription(gputypes.TextureFormatUndefined).WithDimensions(1, 1, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.desc.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%t", err, tt.ok)
			}
		})
	}
}

func TestResolveMemoizedPerSlot(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	b := r.NewGraphBuilder()
	defer r.Discard(b)

	id := b.CreateRenderTargetID(rgba(16, 16, 4), "x")
	p := b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, id) })

	r1 := b.ResolveRenderTargetPassAttachmentSlot(p, SlotColor0)
	r2 := b.ResolveRenderTarget(id)
	if !r1.IsValid() || r1 != r2 {
		t.Errorf("resolve IDs %s and %s, want the same valid ID", r1, r2)
	}
}

func TestResolveFindsMostRecentWriter(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	b := r.NewGraphBuilder()
	defer r.Discard(b)

	id := b.CreateRenderTargetID(rgba(16, 16, 1), "x")
	first := b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, id) })
	second := b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor2, id) })

	rid := b.ResolveRenderTarget(id)
	if second.p.resolveOutputIDs[SlotColor2] != rid {
		t.Error("resolve not recorded on the most recent writer")
	}
	if first.p.resolveOutputIDs[SlotColor0].IsValid() {
		t.Error("resolve recorded on an earlier writer")
	}
}

func TestBuilderInvariants(t *testing.T) {
	tests := []struct {
		name string
		want error
		fn   func(r *Renderer, b *GraphBuilder)
	}{
		{"second builder", ErrGraphInFlight, func(r *Renderer, _ *GraphBuilder) {
			r.NewGraphBuilder()
		}},
		{"invalid description", ErrInvalidDescription, func(_ *Renderer, b *GraphBuilder) {
			b.CreateRenderTargetID(NewRenderTargetDescription(gputypes.TextureFormatRGBA8Unorm), "empty")
		}},
		{"zero id", ErrInvalidHandle, func(_ *Renderer, b *GraphBuilder) {
			b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, RenderTargetID{}) })
		}},
		{"slot attached twice", ErrSlotAlreadyAttached, func(_ *Renderer, b *GraphBuilder) {
			id := b.CreateRenderTargetID(rgba(8, 8, 1), "x")
			b.PushPass(func(p *RenderPass) {
				p.AttachRenderTargetID(SlotColor0, id)
				p.AttachRenderTargetID(SlotColor0, id)
			})
		}},
		{"level out of range", ErrInvalidDescription, func(_ *Renderer, b *GraphBuilder) {
			id := b.CreateRenderTargetID(rgba(8, 8, 1), "x")
			b.PushPass(func(p *RenderPass) { p.AttachRenderTargetView(SlotColor0, id, AttachmentView{Level: 1}) })
		}},
		{"resolve of unattached target", ErrRenderTargetNotAttached, func(_ *Renderer, b *GraphBuilder) {
			b.ResolveRenderTarget(b.CreateRenderTargetID(rgba(8, 8, 1), "x"))
		}},
		{"resolve of empty slot", ErrSlotNotAttached, func(_ *Renderer, b *GraphBuilder) {
			p := b.PushPass(nil)
			b.ResolveRenderTargetPassAttachmentSlot(p, SlotColor1)
		}},
		{"extra ref on empty slot", ErrSlotNotAttached, func(_ *Renderer, b *GraphBuilder) {
			b.PushPass(func(p *RenderPass) { p.AddExtraRef(SlotDepthStencil) })
		}},
		{"external after resolve", ErrResolveConflict, func(_ *Renderer, b *GraphBuilder) {
			id := b.CreateRenderTargetID(rgba(8, 8, 4), "x")
			b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, id) })
			b.ResolveRenderTarget(id)
			b.ResolveRenderTargetToExternalTexture(id, ExternalTexture{Texture: &fakeTexture{}})
		}},
		{"resolve after external", ErrResolveConflict, func(_ *Renderer, b *GraphBuilder) {
			id := b.CreateRenderTargetID(rgba(8, 8, 4), "x")
			b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, id) })
			b.ResolveRenderTargetToExternalTexture(id, ExternalTexture{Texture: &fakeTexture{}})
			b.ResolveRenderTarget(id)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(t)
			b := r.NewGraphBuilder()
			expectInvariant(t, tt.want, func() { tt.fn(r, b) })
		})
	}
}

func TestStaleHandles(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	defer r.Destroy()

	b1 := r.NewGraphBuilder()
	old := b1.CreateRenderTargetID(rgba(8, 8, 1), "old")
	r.Discard(b1)

	b2 := r.NewGraphBuilder()
	defer r.Discard(b2)
	b2.CreateRenderTargetID(rgba(8, 8, 1), "new")

	expectInvariant(t, ErrStaleHandle, func() { b2.RenderTargetDescription(old) })
	expectInvariant(t, ErrStaleHandle, func() {
		b2.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotColor0, old) })
	})
	expectInvariant(t, ErrBuilderClosed, func() { b1.CreateRenderTargetID(rgba(8, 8, 1), "late") })
}

func TestScheduleInvariants(t *testing.T) {
	tests := []struct {
		name  string
		want  error
		build func(b *GraphBuilder)
	}{
		{"dimension mismatch", ErrDimensionMismatch, func(b *GraphBuilder) {
			c := b.CreateRenderTargetID(rgba(64, 64, 1), "c")
			d := b.CreateRenderTargetID(depth(32, 32, 1), "d")
			b.PushPass(func(p *RenderPass) {
				p.AttachRenderTargetID(SlotColor0, c)
				p.AttachRenderTargetID(SlotDepthStencil, d)
			})
		}},
		{"sample count mismatch", ErrDimensionMismatch, func(b *GraphBuilder) {
			c := b.CreateRenderTargetID(rgba(64, 64, 4), "c")
			d := b.CreateRenderTargetID(depth(64, 64, 1), "d")
			b.PushPass(func(p *RenderPass) {
				p.AttachRenderTargetID(SlotColor0, c)
				p.AttachRenderTargetID(SlotDepthStencil, d)
			})
		}},
		{"multisampled depth resolve", ErrDepthResolveUnsupported, func(b *GraphBuilder) {
			d := b.CreateRenderTargetID(depth(64, 64, 4), "d")
			b.PushPass(func(p *RenderPass) { p.AttachRenderTargetID(SlotDepthStencil, d) })
			b.ResolveRenderTarget(d)
		}},
		{"resolve read by its producer", ErrResolveNotReady, func(b *GraphBuilder) {
			c := b.CreateRenderTargetID(rgba(64, 64, 1), "c")
			b.PushPass(func(p *RenderPass) {
				p.AttachRenderTargetID(SlotColor0, c)
				p.AttachResolveTexture(b.ResolveRenderTargetPassAttachmentSlot(p, SlotColor0))
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(t)
			b := r.NewGraphBuilder()
			tt.build(b)
			expectInvariant(t, tt.want, func() { _ = r.Execute(b) })
		})
	}
}

func TestSlotAndModeStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SlotColor0.String(), "Color0"},
		{SlotDepthStencil.String(), "DepthStencil"},
		{AttachmentSlot(9).String(), "Unknown(9)"},
		{ResolveElided.String(), "Elided"},
		{PassKindCompute.String(), "Compute"},
		{RenderTargetID{}.String(), "rt(invalid)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
	if !SlotColor3.IsColor() || SlotDepthStencil.IsColor() {
		t.Error("IsColor")
	}
}

// fakeTexture is a texture the device never created.
type fakeTexture struct{ hal.Texture }
