// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/internal/pool"
)

// Renderer owns the resource pools and drives graph builds.
//
// A Renderer is not safe for concurrent use. Build and execute frames from a
// single goroutine.
type Renderer struct {
	device hal.Device
	queue  hal.Queue
	opts   options

	generation uint32
	builder    *GraphBuilder
	current    *pass
	destroyed  bool

	renderTargets *pool.FreeList[renderTargetKey, *RenderTarget]
	textures      *pool.FreeList[textureKey, *SingleSampledTexture]

	// alive maps a render-target index of the graph being scheduled to its
	// backing resource.
	alive map[int32]*RenderTarget

	inflight   []inflightSubmission
	submitted  uint64
	pending    []pendingRelease
	thumbnails thumbnailCache

	frames    uint64
	lastFrame FrameInfo
	counters  resourceCounters
}

// NewRenderer creates a renderer that allocates from device and submits to queue.
func NewRenderer(device hal.Device, queue hal.Queue, opts ...Option) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{
		device: device,
		queue:  queue,
		opts:   o,
		alive:  make(map[int32]*RenderTarget),
	}
	r.renderTargets = pool.New(
		func(rt *RenderTarget) renderTargetKey {
			return renderTargetKey{rt.Format, rt.Width, rt.Height, rt.NumLevels, rt.SampleCount}
		},
		func(rt *RenderTarget) {
			r.releaseAfter(rt.lastUse, func() {
				slogger().Debug("framegraph: destroy render target", "name", rt.debugName, "format", rt.Format,
					"width", rt.Width, "height", rt.Height, "samples", rt.SampleCount)
				rt.destroy(r.device)
				r.counters.renderTargetsDestroyed++
			})
		},
	)
	r.textures = pool.New(
		func(t *SingleSampledTexture) textureKey { return textureKey{t.Format, t.Width, t.Height} },
		func(t *SingleSampledTexture) {
			r.releaseAfter(t.lastUse, func() {
				slogger().Debug("framegraph: destroy resolve texture", "format", t.Format, "width", t.Width, "height", t.Height)
				t.destroy(r.device)
				r.counters.texturesDestroyed++
			})
		},
	)
	r.thumbnails.limit = o.thumbnailLimit
	slogger().Info("framegraph: renderer created", "evictionAge", o.evictionAge,
		"thumbnails", o.thumbnails, "surfaceFormat", o.surfaceFormat)
	return r, nil
}

// Device returns the HAL device.
func (r *Renderer) Device() hal.Device { return r.device }

// Queue returns the HAL queue.
func (r *Renderer) Queue() hal.Queue { return r.queue }

// SurfaceFormat returns the preferred presentation format.
func (r *Renderer) SurfaceFormat() gputypes.TextureFormat { return r.opts.surfaceFormat }

func (r *Renderer) checkAlive(op string) {
	assert(!r.destroyed, op, ErrRendererDestroyed, "")
}

// NewGraphBuilder opens a graph build. Only one build may be open at a time.
func (r *Renderer) NewGraphBuilder() *GraphBuilder {
	const op = "NewGraphBuilder"
	r.checkAlive(op)
	assert(r.builder == nil, op, ErrGraphInFlight, "generation %d is open", r.generation)
	assert(r.current == nil, op, ErrGraphInFlight, "pass %q is executing", r.currentName())

	r.generation++
	if r.generation == 0 {
		r.generation = 1
	}
	b := &GraphBuilder{r: r, g: &graph{generation: r.generation}}
	r.builder = b
	return b
}

// Discard closes b without executing it.
func (r *Renderer) Discard(b *GraphBuilder) {
	b.checkOpen("Discard")
	assert(r.builder == b, "Discard", ErrStaleHandle, "builder belongs to another renderer or cycle")
	b.closed = true
	r.builder = nil
}

// CurrentPass returns the debug name of the executing pass. ok is false
// before and after Execute.
func (r *Renderer) CurrentPass() (name string, ok bool) {
	if r.current == nil {
		return "", false
	}
	return r.current.debugName, true
}

func (r *Renderer) currentName() string {
	if r.current == nil {
		return ""
	}
	return r.current.debugName
}

// Destroy waits for the GPU, frees in-flight command buffers and destroys
// every pooled resource along with every pending release. It panics if a graph is being built or executed, or
// if any pooled resource is still alive.
func (r *Renderer) Destroy() {
	const op = "Destroy"
	if r.destroyed {
		return
	}
	assert(r.builder == nil, op, ErrGraphInFlight, "generation %d is open", r.generation)
	assert(r.current == nil, op, ErrGraphInFlight, "pass %q is executing", r.currentName())
	assert(len(r.alive) == 0, op, ErrResourceAlive, "%d render targets alive", len(r.alive))

	if err := r.device.WaitIdle(); err != nil {
		slogger().Warn("framegraph: wait idle failed during destroy", "err", err)
	}
	rt := r.renderTargets.Drain()
	tex := r.textures.Drain()
	th := r.thumbnails.destroy(r.device)
	r.retireSubmissions(true)
	slogger().Info("framegraph: renderer destroyed", "renderTargets", rt, "textures", tex, "thumbnails", th)
	r.destroyed = true
}

func (r *Renderer) label(kind, name string) string {
	if r.opts.labelPrefix == "" {
		return fmt.Sprintf("%s:%s", kind, name)
	}
	return fmt.Sprintf("%s:%s:%s", r.opts.labelPrefix, kind, name)
}
