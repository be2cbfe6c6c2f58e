// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framegraph schedules the render targets and passes of one frame on
// a gogpu/wgpu HAL device.
//
// # Overview
//
// Rendering code describes a frame as a list of virtual render targets and an
// ordered list of passes that write and read them. framegraph decides which
// physical textures back each target, when an attachment must be stored or
// can be discarded, when it must be cleared, and how a multisampled target is
// resolved for sampling by a later pass. Physical textures are pooled across
// frames and destroyed after they go unused.
//
// There is no dependency graph: pass order is the schedule.
//
// # Quick Start
//
//	r, err := framegraph.NewRenderer(device, queue)
//	if err != nil {
//		return err
//	}
//	defer r.Destroy()
//
//	b := r.NewGraphBuilder()
//	desc := framegraph.NewRenderTargetDescription(gputypes.TextureFormatRGBA8Unorm).
//		WithDimensions(1280, 720, 4).
//		WithClearColor(framegraph.ClearColor(gputypes.Color{A: 1}))
//	scene := b.CreateRenderTargetID(desc, "scene")
//
//	b.PushPass(func(p *framegraph.RenderPass) {
//		p.SetDebugName("main")
//		p.AttachRenderTargetID(framegraph.SlotColor0, scene)
//		p.Exec(func(enc hal.RenderPassEncoder, s *framegraph.PassScope) {
//			// draw
//		})
//	})
//	resolved := b.ResolveRenderTarget(scene)
//
//	b.PushPass(func(p *framegraph.RenderPass) {
//		p.SetDebugName("post")
//		p.AttachTexture(framegraph.SlotColor0, swapchainTexture, nil)
//		p.AttachResolveTexture(resolved)
//		p.Exec(func(enc hal.RenderPassEncoder, s *framegraph.PassScope) {
//			view := s.ResolveTextureView(resolved)
//			_ = view // bind and draw
//		})
//	})
//
//	if err := r.Execute(b); err != nil {
//		return err
//	}
//
// # Lifecycle
//
// A Renderer is idle until NewGraphBuilder opens a build. The builder is
// consumed by Execute (or Discard), which schedules the whole frame before
// encoding any GPU command and then runs each pass in order. IDs are only
// valid for the build that created them.
//
// # Errors
//
// Misuse of the API (stale IDs, attaching a slot twice, unbalanced reference
// counts, using a PassScope outside its pass) panics with an *InvariantError
// wrapping one of the Err* sentinels. Device failures are returned from
// Execute.
//
// # Logging
//
// framegraph logs through log/slog. See SetLogger.
//
// # Related Packages
//
//   - blit: draws a resolve texture into a render target.
//   - debugview: reads debug thumbnails back and builds a contact sheet.
package framegraph
