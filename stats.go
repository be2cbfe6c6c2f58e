// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/framegraph/internal/pool"
)

type resourceCounters struct {
	renderTargetsCreated   uint64
	renderTargetsDestroyed uint64
	texturesCreated        uint64
	texturesDestroyed      uint64
}

// PoolStats contains resource pool statistics.
type PoolStats struct {
	// RenderTargets holds the render-target free list counters.
	RenderTargets pool.Stats

	// ResolveTextures holds the single-sampled texture free list counters.
	ResolveTextures pool.Stats

	// RenderTargetsCreated and RenderTargetsDestroyed count device allocations
	// over the renderer's lifetime.
	RenderTargetsCreated   uint64
	RenderTargetsDestroyed uint64

	// ResolveTexturesCreated and ResolveTexturesDestroyed count device
	// allocations of resolve textures.
	ResolveTexturesCreated   uint64
	ResolveTexturesDestroyed uint64

	// Thumbnails is the number of persistent thumbnail textures.
	Thumbnails int

	// InFlight is the number of submitted command buffers not yet retired.
	InFlight int

	// PendingReleases is the number of GPU objects whose destruction waits
	// on an in-flight submission.
	PendingReleases int

	// Frames is the number of executed frames.
	Frames uint64
}

// Live returns the number of pooled resources currently owned by the renderer.
func (s PoolStats) Live() uint64 {
	return s.RenderTargetsCreated - s.RenderTargetsDestroyed + s.ResolveTexturesCreated - s.ResolveTexturesDestroyed
}

// String returns a human-readable summary.
func (s PoolStats) String() string {
	return fmt.Sprintf("frames=%d live=%d rt[%s created=%d] resolve[%s created=%d] thumbnails=%d inflight=%d pending=%d",
		s.Frames, s.Live(),
		s.RenderTargets, s.RenderTargetsCreated,
		s.ResolveTextures, s.ResolveTexturesCreated,
		s.Thumbnails, s.InFlight, s.PendingReleases)
}

// Stats returns the current pool statistics.
func (r *Renderer) Stats() PoolStats {
	return PoolStats{
		RenderTargets:            r.renderTargets.Stats(),
		ResolveTextures:          r.textures.Stats(),
		RenderTargetsCreated:     r.counters.renderTargetsCreated,
		RenderTargetsDestroyed:   r.counters.renderTargetsDestroyed,
		ResolveTexturesCreated:   r.counters.texturesCreated,
		ResolveTexturesDestroyed: r.counters.texturesDestroyed,
		Thumbnails:               len(r.thumbnails.entries),
		InFlight:                 len(r.inflight),
		PendingReleases:          len(r.pending),
		Frames:                   r.frames,
	}
}

// LastFrame returns the description of the most recently executed frame.
func (r *Renderer) LastFrame() FrameInfo { return r.lastFrame }
