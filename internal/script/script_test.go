// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/haltest"
)

const deferred = `
frames: 2
targets:
  - {name: gbuffer, format: rgba16float, width: 320, height: 180, clear: [0, 0, 0, 1]}
  - {name: depth, format: depth24plus-stencil8, width: 320, height: 180, depth: 1, stencil: 0}
  - {name: lit, format: rgba8unorm, width: 320, height: 180, samples: 4, clear: [0, 0, 0, 1]}
  - {name: present, format: bgra8unorm, width: 320, height: 180}
passes:
  - name: geometry
    attach: {color0: gbuffer, depth: depth}
    thumbnails: [gbuffer]
  - name: lighting
    attach: {color0: lit}
    reads: [gbuffer]
    viewport: [0, 0, 0.5, 1]
  - name: histogram
    kind: compute
    reads: [lit]
  - name: present
    kind: blit
    source: lit
    attach: {color0: present}
`

func parse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	return s
}

type fakeBlitter struct{ calls []string }

func (f *fakeBlitter) PushBlit(gb *framegraph.GraphBuilder, src framegraph.ResolveTextureID, dst framegraph.RenderTargetID, name string) *framegraph.RenderPass {
	f.calls = append(f.calls, name)
	return gb.PushPass(func(p *framegraph.RenderPass) {
		p.SetDebugName(name)
		p.AttachRenderTargetID(framegraph.SlotColor0, dst)
		p.AttachResolveTexture(src)
	})
}

func TestParse(t *testing.T) {
	s := parse(t, deferred)
	if s.Frames != 2 || len(s.Targets) != 4 || len(s.Passes) != 4 {
		t.Fatalf("script %+v", s)
	}
	if got := gputypes.TextureFormat(s.Targets[1].Format); got != gputypes.TextureFormatDepth24PlusStencil8 {
		t.Errorf("depth format = %s", got)
	}
	d := s.Targets[2].Description()
	if d.SampleCount != 4 || d.NumLevels != 1 || d.ClearColor.Load {
		t.Errorf("lit description %+v", d)
	}
}

func TestReplay(t *testing.T) {
	s := parse(t, deferred)
	dev, queue := haltest.New()
	r, err := framegraph.NewRenderer(dev, queue, framegraph.WithDebugThumbnails(true))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()

	bl := &fakeBlitter{}
	var traced []string
	b := r.NewGraphBuilder()
	f, err := s.Replay(b, Options{Blitter: bl, Trace: func(p Pass, _ *framegraph.PassScope) {
		traced = append(traced, p.Name)
	}})
	if err != nil {
		t.Fatalf("Replay() = %v", err)
	}
	if len(f.Targets) != 4 || len(f.Resolves) != 2 {
		t.Errorf("frame targets=%d resolves=%d", len(f.Targets), len(f.Resolves))
	}
	if err := r.Execute(b); err != nil {
		t.Fatalf("Execute() = %v", err)
	}

	if strings.Join(traced, ",") != "geometry,lighting,histogram" {
		t.Errorf("traced %v", traced)
	}
	if len(bl.calls) != 1 || bl.calls[0] != "present" {
		t.Errorf("blit calls %v", bl.calls)
	}
	info := r.LastFrame()
	if len(info.Passes) != 4 || len(info.Thumbnails) != 1 {
		t.Fatalf("frame:\n%s", info)
	}
	if p, _ := info.Pass("lighting"); p.ResolveInputs != 1 || p.Viewport[2] != 160 {
		t.Errorf("lighting %+v", p)
	}
	if p, _ := info.Pass("present"); p.ResolveInputs != 1 {
		t.Errorf("present %+v", p)
	}
}

func TestReplayBlitWithoutBlitter(t *testing.T) {
	s := parse(t, deferred)
	dev, queue := haltest.New()
	r, err := framegraph.NewRenderer(dev, queue)
	if err != nil {
		t.Fatal(err)
	}
	b := r.NewGraphBuilder()
	defer r.Discard(b)
	if _, err := s.Replay(b, Options{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Replay() = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	const targets = `
targets:
  - {name: c, format: rgba8unorm, width: 64, height: 64}
  - {name: small, format: rgba8unorm, width: 32, height: 32}
  - {name: msdepth, format: depth32float, width: 64, height: 64, samples: 4}
  - {name: mips, format: rgba8unorm, width: 64, height: 64, levels: 2}
`
	tests := []struct {
		name   string
		passes string
	}{
		{"unknown kind", `[{name: a, kind: raytrace}]`},
		{"unknown slot", `[{name: a, attach: {color7: c}}]`},
		{"unknown target", `[{name: a, attach: {color0: nope}}]`},
		{"depth in color slot", `[{name: a, attach: {color0: msdepth}}]`},
		{"size mismatch", `[{name: a, attach: {color0: c, color1: small}}]`},
		{"level out of range", `[{name: a, attach: {color0: c}, levels: {color0: 1}}]`},
		{"read before write", `[{name: a, reads: [c], kind: compute}]`},
		{"resolve msaa depth", `[{name: a, attach: {depth: msdepth}}, {name: b, kind: compute, reads: [msdepth]}]`},
		{"compute attachments", `[{name: a, kind: compute, attach: {color0: c}}]`},
		{"blit without source", `[{name: a, kind: blit, attach: {color0: c}}]`},
		{"source on render pass", `[{name: a, source: c, attach: {color0: c}}]`},
		{"extra ref on empty slot", `[{name: a, attach: {color0: c}, extraRefs: [color1]}]`},
		{"thumbnail of unattached", `[{name: a, attach: {color0: c}, thumbnails: [small]}]`},
		{"same target twice", `[{name: a, attach: {color0: c, color1: c}}]`},
		{"short viewport", `[{name: a, attach: {color0: c}, viewport: [0, 0]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(targets + "passes: " + tt.passes + "\n"))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse() = %v, want ErrInvalid", err)
			}
		})
	}

	t.Run("mip level fits", func(t *testing.T) {
		parse(t, targets+"passes: [{name: a, attach: {color0: mips, color1: small}, levels: {color0: 1}}]\n")
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, src string
	}{
		{"unknown field", "targets: []\npasses: []\nbogus: 1\n"},
		{"unknown format", "targets: [{name: a, format: rgb565, width: 1, height: 1}]\n"},
		{"format not a string", "targets: [{name: a, format: [1], width: 1, height: 1}]\n"},
		{"zero size", "targets: [{name: a, format: rgba8unorm}]\n"},
		{"duplicate target", "targets: [{name: a, format: r8unorm, width: 1, height: 1}, {name: a, format: r8unorm, width: 1, height: 1}]\n"},
		{"short clear", "targets: [{name: a, format: r8unorm, width: 1, height: 1, clear: [1]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.src)); err == nil {
				t.Error("Parse() succeeded")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.yaml")
	if err := os.WriteFile(path, []byte(deferred), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load() = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
