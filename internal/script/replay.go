// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package script

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
)

// Blitter adds blit passes. *blit.Blitter implements it.
type Blitter interface {
	PushBlit(gb *framegraph.GraphBuilder, src framegraph.ResolveTextureID, dst framegraph.RenderTargetID, name string) *framegraph.RenderPass
}

// Options configures Replay.
type Options struct {
	// Blitter records blit passes. Scripts with blit passes fail to replay
	// without one.
	Blitter Blitter

	// Trace, when set, is called from every pass as it executes.
	Trace func(p Pass, s *framegraph.PassScope)
}

// Frame is the result of replaying a script into a builder.
type Frame struct {
	Targets  map[string]framegraph.RenderTargetID
	Resolves map[string]framegraph.ResolveTextureID
}

// Replay declares the targets and passes of s on gb. The script must have
// passed Validate; Parse and Load guarantee that.
func (s *Script) Replay(gb *framegraph.GraphBuilder, opts Options) (*Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	for i, p := range s.Passes {
		if p.kind() == KindBlit && opts.Blitter == nil {
			return nil, invalid("pass %d: blit pass without a blitter", i)
		}
	}

	f := &Frame{
		Targets:  make(map[string]framegraph.RenderTargetID, len(s.Targets)),
		Resolves: make(map[string]framegraph.ResolveTextureID),
	}
	for _, t := range s.Targets {
		f.Targets[t.Name] = gb.CreateRenderTargetID(t.Description(), t.Name)
	}

	for _, p := range s.Passes {
		inputs := make([]framegraph.ResolveTextureID, 0, len(p.Reads))
		for _, name := range p.Reads {
			rid := gb.ResolveRenderTarget(f.Targets[name])
			f.Resolves[name] = rid
			inputs = append(inputs, rid)
		}

		switch p.kind() {
		case KindCompute:
			gb.PushComputePass(func(cp *framegraph.ComputePass) {
				cp.SetDebugName(p.Name)
				for _, rid := range inputs {
					cp.AttachResolveTexture(rid)
				}
				if opts.Trace != nil {
					cp.Exec(func(_ hal.ComputePassEncoder, scope *framegraph.PassScope) { opts.Trace(p, scope) })
				}
			})
		case KindBlit:
			src := gb.ResolveRenderTarget(f.Targets[p.Source])
			f.Resolves[p.Source] = src
			rp := opts.Blitter.PushBlit(gb, src, f.Targets[p.Attach["color0"]], p.Name)
			for _, rid := range inputs {
				rp.AttachResolveTexture(rid)
			}
		default:
			gb.PushPass(func(rp *framegraph.RenderPass) {
				rp.SetDebugName(p.Name)
				for slotName, target := range p.Attach {
					rp.AttachRenderTargetView(slots[slotName], f.Targets[target], framegraph.AttachmentView{Level: p.Levels[slotName]})
				}
				for _, slotName := range p.ExtraRefs {
					rp.AddExtraRef(slots[slotName])
				}
				for _, rid := range inputs {
					rp.AttachResolveTexture(rid)
				}
				if len(p.Viewport) == 4 {
					rp.SetViewport(p.Viewport[0], p.Viewport[1], p.Viewport[2], p.Viewport[3])
				}
				if opts.Trace != nil {
					rp.Exec(func(_ hal.RenderPassEncoder, scope *framegraph.PassScope) { opts.Trace(p, scope) })
				}
			})
		}

		for _, name := range p.Thumbnails {
			gb.PushDebugThumbnail(f.Targets[name], "")
		}
	}
	return f, nil
}
