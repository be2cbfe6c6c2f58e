// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package blit

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/haltest"
)

func target(format gputypes.TextureFormat, samples uint32) framegraph.RenderTargetDescription {
	return framegraph.NewRenderTargetDescription(format).
		WithDimensions(128, 64, samples).
		WithClearColor(framegraph.ClearColor(haltest.Color(0, 0, 0)))
}

func blitFrame(t *testing.T, r *framegraph.Renderer, bl *Blitter, dstFormat gputypes.TextureFormat) framegraph.FrameInfo {
	t.Helper()
	b := r.NewGraphBuilder()
	scene := b.CreateRenderTargetID(target(gputypes.TextureFormatRGBA8Unorm, 4), "scene")
	present := b.CreateRenderTargetID(target(dstFormat, 1), "present")
	b.PushPass(func(p *framegraph.RenderPass) {
		p.SetDebugName("scene")
		p.AttachRenderTargetID(framegraph.SlotColor0, scene)
	})
	bl.PushBlit(b, b.ResolveRenderTarget(scene), present, "blit")
	if err := r.Execute(b); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	return r.LastFrame()
}

func TestNewRejectsNilDevice(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, framegraph.ErrNilDevice) {
		t.Errorf("New(nil) = %v, want ErrNilDevice", err)
	}
}

func TestPushBlit(t *testing.T) {
	dev, queue := haltest.New()
	r, err := framegraph.NewRenderer(dev, queue)
	if err != nil {
		t.Fatal(err)
	}
	bl, err := New(dev)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if dev.ShaderModulesCreated != 1 {
		t.Errorf("shader modules = %d, want 1", dev.ShaderModulesCreated)
	}

	f := blitFrame(t, r, bl, gputypes.TextureFormatRGBA8Unorm)
	if p, ok := f.Pass("blit"); !ok || p.ResolveInputs != 1 {
		t.Fatalf("blit pass %+v (found %t)", p, ok)
	}
	if dev.Draws != 1 || bl.Pipelines() != 1 {
		t.Fatalf("draws = %d pipelines = %d, want 1 and 1", dev.Draws, bl.Pipelines())
	}
	pd := dev.Pipelines[0]
	if got := pd.Fragment.Targets[0].Format; got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("pipeline target format = %s", got)
	}
	if pd.Multisample.Count != 1 {
		t.Errorf("pipeline samples = %d, want 1", pd.Multisample.Count)
	}
	tv, ok := dev.BindGroups[0][0].Resource.(gputypes.TextureViewBinding)
	if !ok || tv.TextureView == 0 {
		t.Errorf("binding 0 = %#v, want the resolve view", dev.BindGroups[0][0].Resource)
	}

	blitFrame(t, r, bl, gputypes.TextureFormatRGBA8Unorm)
	if bl.Pipelines() != 1 || dev.BindGroupsDestroyed != 1 {
		t.Errorf("second frame: pipelines = %d groups destroyed = %d", bl.Pipelines(), dev.BindGroupsDestroyed)
	}

	blitFrame(t, r, bl, gputypes.TextureFormatBGRA8Unorm)
	if bl.Pipelines() != 2 {
		t.Errorf("pipelines = %d after a new target format, want 2", bl.Pipelines())
	}

	bl.Destroy()
	bl.Destroy()
	if dev.PipelinesDestroyed != 2 || dev.BindGroupsDestroyed != dev.BindGroupsCreated {
		t.Errorf("after Destroy: pipelines destroyed %d, groups %d/%d",
			dev.PipelinesDestroyed, dev.BindGroupsDestroyed, dev.BindGroupsCreated)
	}
	r.Destroy()
}
