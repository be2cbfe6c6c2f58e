// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Thumbnail is a snapshot of a render target captured after the pass that
// last wrote it. Texture is owned by the renderer, is left in the
// TextureBinding state and stays valid until the next Execute or Destroy.
type Thumbnail struct {
	Label  string
	Pass   string
	Target string
	Slot   AttachmentSlot
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
	Frame  uint64

	Texture hal.Texture
}

type thumbnailEntry struct {
	key     textureKey
	texture hal.Texture
	used    bool
	usage   gputypes.TextureUsage
	lastUse uint64
}

// thumbnailCache keeps the persistent copy destinations. An entry survives
// into the next frame only if a thumbnail of the same size and format is
// captured again.
type thumbnailCache struct {
	entries  []*thumbnailEntry
	limit    int
	captured int
}

func (c *thumbnailCache) beginFrame() {
	c.captured = 0
	for _, e := range c.entries {
		e.used = false
	}
}

func (c *thumbnailCache) acquire(device hal.Device, k textureKey, label string) (*thumbnailEntry, error) {
	for _, e := range c.entries {
		if !e.used && e.key == k {
			e.used = true
			return e, nil
		}
	}
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: k.width, Height: k.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        k.format,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("create thumbnail texture %q: %w", label, err)
	}
	e := &thumbnailEntry{key: k, texture: tex, used: true}
	c.entries = append(c.entries, e)
	return e, nil
}

// endFrame drops the entries not captured this frame and returns them. The
// caller owns their textures.
func (c *thumbnailCache) endFrame() []*thumbnailEntry {
	var dropped []*thumbnailEntry
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.used {
			kept = append(kept, e)
			continue
		}
		dropped = append(dropped, e)
	}
	clear(c.entries[len(kept):])
	c.entries = kept
	return dropped
}

func (c *thumbnailCache) destroy(device hal.Device) int {
	n := len(c.entries)
	for _, e := range c.entries {
		device.DestroyTexture(e.texture)
	}
	c.entries = nil
	return n
}

// captureThumbnails copies the resolved contents of every thumbnail slot of p
// into a persistent texture.
func (r *Renderer) captureThumbnails(enc hal.CommandEncoder, sg *scheduledGraph, p *pass, frame *FrameInfo) {
	for _, req := range sg.thumbnails {
		if req.pass != p || !p.thumbnails[req.slot] {
			continue
		}
		ss := &p.sched.slots[req.slot]
		if ss.resolveTexture == nil {
			slogger().Debug("framegraph: thumbnail has no resolved source", "label", req.label, "pass", p.debugName)
			continue
		}
		if r.thumbnails.captured >= r.thumbnails.limit {
			slogger().Warn("framegraph: thumbnail limit reached", "label", req.label, "limit", r.thumbnails.limit)
			continue
		}
		dst, err := r.thumbnails.acquire(r.device, textureKey{ss.format, ss.width, ss.height}, r.label("thumbnail", req.label))
		if err != nil {
			slogger().Warn("framegraph: thumbnail skipped", "label", req.label, "err", err)
			continue
		}
		var level uint32
		if ss.resolveMode == ResolveElided {
			level = ss.level
		}
		copyTexture(enc, ss.resolveTexture, level, ss.resolveUsage, dst.texture, dst.usage, ss.width, ss.height, aspectFor(ss.format))
		dst.usage = gputypes.TextureUsageTextureBinding
		p.sched.thumbnails = append(p.sched.thumbnails, dst)
		r.thumbnails.captured++
		frame.Thumbnails = append(frame.Thumbnails, Thumbnail{
			Label:   req.label,
			Pass:    p.debugName,
			Target:  sg.debugNames[req.id.index],
			Slot:    req.slot,
			Format:  ss.format,
			Width:   ss.width,
			Height:  ss.height,
			Frame:   frame.Frame,
			Texture: dst.texture,
		})
	}
}
