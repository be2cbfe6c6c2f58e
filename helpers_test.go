// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/internal/haltest"
)

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, *haltest.Device, *haltest.Queue) {
	t.Helper()
	dev, queue := haltest.New()
	r, err := NewRenderer(dev, queue, opts...)
	if err != nil {
		t.Fatalf("NewRenderer() = %v", err)
	}
	return r, dev, queue
}

func rgba(w, h, samples uint32) RenderTargetDescription {
	return NewRenderTargetDescription(gputypes.TextureFormatRGBA8Unorm).
		WithDimensions(w, h, samples).
		WithClearColor(ClearColor(gputypes.Color{A: 1}))
}

func depth(w, h, samples uint32) RenderTargetDescription {
	return NewRenderTargetDescription(gputypes.TextureFormatDepth24PlusStencil8).
		WithDimensions(w, h, samples).
		WithClearDepth(ClearDepth(1)).
		WithClearStencil(ClearStencil(0))
}

// expectInvariant runs fn and checks that it panics with an *InvariantError
// wrapping want.
func expectInvariant(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		v := recover()
		if v == nil {
			t.Fatalf("expected panic wrapping %v", want)
		}
		ie, ok := v.(*InvariantError)
		if !ok {
			t.Fatalf("panic value %T (%v), want *InvariantError", v, v)
		}
		if !errors.Is(ie, want) {
			t.Fatalf("panic %v, want %v", ie, want)
		}
	}()
	fn()
}

func mustExecute(t *testing.T, r *Renderer, b *GraphBuilder) FrameInfo {
	t.Helper()
	if err := r.Execute(b); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	return r.LastFrame()
}

func mustPass(t *testing.T, f FrameInfo, name string) PassInfo {
	t.Helper()
	p, ok := f.Pass(name)
	if !ok {
		t.Fatalf("pass %q not in frame:\n%s", name, f)
	}
	return p
}

func mustAttachment(t *testing.T, p PassInfo, slot AttachmentSlot) AttachmentInfo {
	t.Helper()
	a, ok := p.Attachment(slot)
	if !ok {
		t.Fatalf("pass %q has no %s attachment", p.Name, slot)
	}
	return a
}
