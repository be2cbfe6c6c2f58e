// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package script loads YAML frame scripts and replays them into a
// framegraph.GraphBuilder.
//
// A script names render targets and lists passes in submission order.
// Each pass attaches targets to slots, reads the resolved contents of
// targets written by earlier passes and may request debug thumbnails:
//
//	targets:
//	  - {name: scene, format: rgba8unorm, width: 640, height: 360, samples: 4, clear: [0, 0, 0, 1]}
//	  - {name: depth, format: depth24plus-stencil8, width: 640, height: 360, samples: 4, depth: 1, stencil: 0}
//	passes:
//	  - name: opaque
//	    attach: {color0: scene, depth: depth}
//	    thumbnails: [scene]
//	  - name: bloom
//	    kind: compute
//	    reads: [scene]
package script

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/framegraph"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("script: invalid frame script")

// Pass kinds.
const (
	KindRender  = "render"
	KindCompute = "compute"
	KindBlit    = "blit"
)

var formats = map[string]gputypes.TextureFormat{
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb":      gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb":      gputypes.TextureFormatBGRA8UnormSrgb,
	"rgba16float":          gputypes.TextureFormatRGBA16Float,
	"depth32float":         gputypes.TextureFormatDepth32Float,
	"depth24plus":          gputypes.TextureFormatDepth24Plus,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

var slots = map[string]framegraph.AttachmentSlot{
	"color0": framegraph.SlotColor0,
	"color1": framegraph.SlotColor1,
	"color2": framegraph.SlotColor2,
	"color3": framegraph.SlotColor3,
	"depth":  framegraph.SlotDepthStencil,
}

// Format is a texture format written by its WebGPU name.
type Format gputypes.TextureFormat

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Format) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: format must be a string", node.Line)
	}
	tf, ok := formats[strings.ToLower(node.Value)]
	if !ok {
		return fmt.Errorf("line %d: unknown format %q", node.Line, node.Value)
	}
	*f = Format(tf)
	return nil
}

// Target describes one render target.
type Target struct {
	Name    string    `yaml:"name"`
	Format  Format    `yaml:"format"`
	Width   uint32    `yaml:"width"`
	Height  uint32    `yaml:"height"`
	Samples uint32    `yaml:"samples,omitempty"`
	Levels  uint32    `yaml:"levels,omitempty"`
	Clear   []float64 `yaml:"clear,omitempty"`
	Depth   *float32  `yaml:"depth,omitempty"`
	Stencil *uint32   `yaml:"stencil,omitempty"`
}

// Description converts t to a render target description. Samples and
// levels default to 1.
func (t Target) Description() framegraph.RenderTargetDescription {
	d := framegraph.NewRenderTargetDescription(gputypes.TextureFormat(t.Format)).
		WithDimensions(t.Width, t.Height, max(t.Samples, 1)).
		WithLevels(max(t.Levels, 1))
	if len(t.Clear) == 4 {
		d = d.WithClearColor(framegraph.ClearColor(gputypes.Color{R: t.Clear[0], G: t.Clear[1], B: t.Clear[2], A: t.Clear[3]}))
	}
	if t.Depth != nil {
		d = d.WithClearDepth(framegraph.ClearDepth(*t.Depth))
	}
	if t.Stencil != nil {
		d = d.WithClearStencil(framegraph.ClearStencil(*t.Stencil))
	}
	return d
}

// Pass describes one pass.
//
// Attach maps slot names (color0..color3, depth) to target names. Reads
// lists targets whose resolved contents the pass samples; each is resolved
// from its most recent writer. A blit pass draws Source into Attach.color0.
type Pass struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind,omitempty"`
	Attach     map[string]string `yaml:"attach,omitempty"`
	Levels     map[string]uint32 `yaml:"levels,omitempty"`
	Reads      []string          `yaml:"reads,omitempty"`
	ExtraRefs  []string          `yaml:"extraRefs,omitempty"`
	Viewport   []float32         `yaml:"viewport,omitempty"`
	Source     string            `yaml:"source,omitempty"`
	Thumbnails []string          `yaml:"thumbnails,omitempty"`
}

func (p Pass) kind() string {
	if p.Kind == "" {
		return KindRender
	}
	return strings.ToLower(p.Kind)
}

// Script is a parsed frame script.
type Script struct {
	Frames  int      `yaml:"frames,omitempty"`
	Targets []Target `yaml:"targets"`
	Passes  []Pass   `yaml:"passes"`
}

// Parse decodes and validates a script. Unknown fields are rejected.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse frame script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read frame script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks that replaying s cannot violate a builder or scheduler
// invariant: targets are well formed, every reference names a known target,
// reads follow a writer, and attachments of a render pass agree in size.
func (s *Script) Validate() error {
	if s.Frames < 0 {
		return invalid("frames must not be negative")
	}
	targets := make(map[string]Target, len(s.Targets))
	for i, t := range s.Targets {
		if t.Name == "" {
			return invalid("target %d has no name", i)
		}
		if _, dup := targets[t.Name]; dup {
			return invalid("target %q declared twice", t.Name)
		}
		if len(t.Clear) != 0 && len(t.Clear) != 4 {
			return invalid("target %q: clear needs 4 components", t.Name)
		}
		if err := t.Description().Validate(); err != nil {
			return invalid("target %q: %v", t.Name, err)
		}
		targets[t.Name] = t
	}

	written := make(map[string]bool)
	for i, p := range s.Passes {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if err := s.validatePass(name, p, targets, written); err != nil {
			return err
		}
		for _, target := range p.Attach {
			written[target] = true
		}
	}
	return nil
}

func (s *Script) validatePass(name string, p Pass, targets map[string]Target, written map[string]bool) error {
	kind := p.kind()
	switch kind {
	case KindRender, KindBlit:
	case KindCompute:
		if len(p.Attach) != 0 || len(p.Thumbnails) != 0 || len(p.ExtraRefs) != 0 {
			return invalid("pass %s: compute passes take no attachments", name)
		}
	default:
		return invalid("pass %s: unknown kind %q", name, p.Kind)
	}
	if kind == KindBlit {
		if p.Source == "" || p.Attach["color0"] == "" || len(p.Attach) != 1 {
			return invalid("pass %s: blit needs a source and only a color0 attachment", name)
		}
	} else if p.Source != "" {
		return invalid("pass %s: source is only valid on blit passes", name)
	}

	var size [3]uint32
	seen := make(map[string]bool, len(p.Attach))
	for slotName, target := range p.Attach {
		if seen[target] {
			return invalid("pass %s: target %q attached to two slots", name, target)
		}
		seen[target] = true
		slot, ok := slots[slotName]
		if !ok {
			return invalid("pass %s: unknown slot %q", name, slotName)
		}
		t, ok := targets[target]
		if !ok {
			return invalid("pass %s: unknown target %q", name, target)
		}
		isDepth := gputypes.TextureFormat(t.Format).IsDepthStencil()
		if isDepth != (slot == framegraph.SlotDepthStencil) {
			return invalid("pass %s: target %q does not fit slot %s", name, target, slotName)
		}
		level := p.Levels[slotName]
		d := t.Description()
		if level >= d.NumLevels {
			return invalid("pass %s: level %d of %q out of range", name, level, target)
		}
		w, h := max(d.Width>>level, 1), max(d.Height>>level, 1)
		got := [3]uint32{w, h, d.SampleCount}
		if size != ([3]uint32{}) && size != got {
			return invalid("pass %s: attachments differ in size", name)
		}
		size = got
		if slot == framegraph.SlotDepthStencil && d.SampleCount > 1 && slices.Contains(p.Thumbnails, target) {
			return invalid("pass %s: thumbnail of multisampled depth %q", name, target)
		}
	}
	for slotName := range p.Levels {
		if _, ok := p.Attach[slotName]; !ok {
			return invalid("pass %s: level given for unattached slot %q", name, slotName)
		}
	}
	for _, slotName := range p.ExtraRefs {
		if _, ok := p.Attach[slotName]; !ok {
			return invalid("pass %s: extra ref on unattached slot %q", name, slotName)
		}
	}
	reads := slices.Clone(p.Reads)
	if p.Source != "" {
		if t, ok := targets[p.Source]; ok && gputypes.TextureFormat(t.Format).IsDepthStencil() {
			return invalid("pass %s: blit source %q is not a color target", name, p.Source)
		}
		reads = append(reads, p.Source)
	}
	for _, target := range reads {
		t, ok := targets[target]
		if !ok {
			return invalid("pass %s: unknown target %q", name, target)
		}
		if !written[target] {
			return invalid("pass %s: reads %q before any pass writes it", name, target)
		}
		if gputypes.TextureFormat(t.Format).IsDepthStencil() && max(t.Samples, 1) > 1 {
			return invalid("pass %s: cannot resolve multisampled depth %q", name, target)
		}
	}
	for _, target := range p.Thumbnails {
		if !slices.Contains(slices.Collect(maps.Values(p.Attach)), target) {
			return invalid("pass %s: thumbnail of unattached target %q", name, target)
		}
	}
	if len(p.Viewport) != 0 && len(p.Viewport) != 4 {
		return invalid("pass %s: viewport needs 4 components", name)
	}
	return nil
}
