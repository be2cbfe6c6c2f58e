// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// AttachmentInfo describes what the scheduler decided for one attachment.
type AttachmentInfo struct {
	Slot        AttachmentSlot
	Target      string
	External    bool
	Width       uint32
	Height      uint32
	SampleCount uint32
	Format      gputypes.TextureFormat
	Level       uint32

	// Load is the color load op for color slots and the depth load op for
	// the depth/stencil slot.
	Load    gputypes.LoadOp
	Store   bool
	Resolve ResolveMode
}

// PassInfo describes one executed pass.
type PassInfo struct {
	Name          string
	Kind          PassKind
	Attachments   []AttachmentInfo
	ResolveInputs int
	Viewport      [4]float32
}

// FrameInfo describes the most recently executed frame.
type FrameInfo struct {
	// Frame counts executed frames, starting at 1.
	Frame      uint64
	Generation uint32
	Passes     []PassInfo

	// Allocated, Reused and Evicted count pooled resources created,
	// reused and destroyed while scheduling the frame.
	Allocated int
	Reused    int
	Evicted   int

	Thumbnails []Thumbnail
}

func newFrameInfo(frame uint64, sg *scheduledGraph) FrameInfo {
	fi := FrameInfo{
		Frame:      frame,
		Generation: sg.generation,
		Passes:     make([]PassInfo, 0, len(sg.passes)),
		Allocated:  sg.allocated,
		Reused:     sg.reused,
		Evicted:    sg.evicted,
	}
	for _, p := range sg.passes {
		pi := PassInfo{
			Name:          p.debugName,
			Kind:          p.kind,
			ResolveInputs: len(p.resolveInputIDs),
			Viewport:      p.sched.viewport,
		}
		for s := range NumAttachmentSlots {
			ss := &p.sched.slots[s]
			if !ss.used() {
				continue
			}
			ai := AttachmentInfo{
				Slot:        AttachmentSlot(s),
				External:    ss.external != nil,
				Width:       ss.width,
				Height:      ss.height,
				SampleCount: ss.sampleCount,
				Format:      ss.format,
				Level:       ss.level,
				Load:        ss.colorLoad,
				Store:       ss.store,
				Resolve:     ss.resolveMode,
			}
			if AttachmentSlot(s) == SlotDepthStencil {
				ai.Load = ss.depthLoad
			}
			if id := p.attachments[s].renderTargetID; id.IsValid() {
				ai.Target = sg.debugNames[id.index]
			} else {
				ai.Target = "external"
			}
			pi.Attachments = append(pi.Attachments, ai)
		}
		fi.Passes = append(fi.Passes, pi)
	}
	return fi
}

// Pass returns the info of the first pass named name.
func (f FrameInfo) Pass(name string) (PassInfo, bool) {
	for _, p := range f.Passes {
		if p.Name == name {
			return p, true
		}
	}
	return PassInfo{}, false
}

// Attachment returns the info of slot.
func (p PassInfo) Attachment(slot AttachmentSlot) (AttachmentInfo, bool) {
	for _, a := range p.Attachments {
		if a.Slot == slot {
			return a, true
		}
	}
	return AttachmentInfo{}, false
}

// String returns a multi-line summary of the frame.
func (f FrameInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %d: %d passes, allocated=%d reused=%d evicted=%d thumbnails=%d\n",
		f.Frame, len(f.Passes), f.Allocated, f.Reused, f.Evicted, len(f.Thumbnails))
	for _, p := range f.Passes {
		fmt.Fprintf(&sb, "  %s %q inputs=%d\n", p.Kind, p.Name, p.ResolveInputs)
		for _, a := range p.Attachments {
			fmt.Fprintf(&sb, "    %-12s %-16s %dx%d@%d load=%s store=%t resolve=%s\n",
				a.Slot, a.Target, a.Width, a.Height, a.SampleCount, a.Load, a.Store, a.Resolve)
		}
	}
	return sb.String()
}
