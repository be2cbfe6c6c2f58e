// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debugview

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/haltest"
)

func newTexture(t *testing.T, dev *haltest.Device, w, h uint32, fill [4]byte) *haltest.Texture {
	t.Helper()
	tex, err := dev.CreateTexture(&hal.TextureDescriptor{
		Label: "src",
		Size:  hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	ht := tex.(*haltest.Texture)
	ht.Fill = fill
	return ht
}

func TestReadThumbnailsFromFrame(t *testing.T) {
	dev, queue := haltest.New()
	r, err := framegraph.NewRenderer(dev, queue, framegraph.WithDebugThumbnails(true))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()

	b := r.NewGraphBuilder()
	id := b.CreateRenderTargetID(framegraph.NewRenderTargetDescription(gputypes.TextureFormatRGBA8Unorm).
		WithDimensions(70, 3, 4), "scene")
	b.PushPass(func(p *framegraph.RenderPass) {
		p.SetDebugName("opaque")
		p.AttachRenderTargetID(framegraph.SlotColor0, id)
	})
	b.PushDebugThumbnail(id, "")
	if err := r.Execute(b); err != nil {
		t.Fatal(err)
	}
	thumbs := r.LastFrame().Thumbnails
	if len(thumbs) != 1 {
		t.Fatalf("thumbnails = %d, want 1", len(thumbs))
	}
	thumbs[0].Texture.(*haltest.Texture).Fill = [4]byte{10, 20, 30, 255}

	imgs, err := ReadThumbnails(dev, queue, thumbs)
	if err != nil {
		t.Fatalf("ReadThumbnails() = %v", err)
	}
	img := imgs[0]
	if got := img.RGBA.Bounds(); got != image.Rect(0, 0, 70, 3) {
		t.Errorf("bounds = %v", got)
	}
	if got := img.RGBA.RGBAAt(69, 2); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel = %v", got)
	}
	if img.Caption() != "opaque/scene" {
		t.Errorf("Caption() = %q", img.Caption())
	}
	if dev.BuffersDestroyed != dev.BuffersCreated {
		t.Errorf("staging buffers leaked: %d/%d", dev.BuffersDestroyed, dev.BuffersCreated)
	}
}

func TestReadThumbnailsFormats(t *testing.T) {
	dev, queue := haltest.New()
	fill := [4]byte{1, 2, 3, 4}
	thumbs := []framegraph.Thumbnail{
		{Label: "bgra", Target: "a", Format: gputypes.TextureFormatBGRA8Unorm, Width: 2, Height: 2,
			Texture: newTexture(t, dev, 2, 2, fill)},
		{Label: "float", Target: "b", Format: gputypes.TextureFormatRGBA16Float, Width: 2, Height: 2,
			Texture: newTexture(t, dev, 2, 2, fill)},
	}

	imgs, err := ReadThumbnails(dev, queue, thumbs)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("images = %d, want 1", len(imgs))
	}
	if got := imgs[0].RGBA.RGBAAt(0, 0); got != (color.RGBA{3, 2, 1, 4}) {
		t.Errorf("BGRA texel read as %v, want red and blue swapped", got)
	}
	if imgs[0].Caption() != "bgra (a)" {
		t.Errorf("Caption() = %q", imgs[0].Caption())
	}

	if imgs, err := ReadThumbnails(dev, queue, nil); imgs != nil || err != nil {
		t.Errorf("ReadThumbnails(nil) = %v, %v", imgs, err)
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestContactSheet(t *testing.T) {
	if ContactSheet(nil, SheetOptions{}) != nil {
		t.Error("ContactSheet(nil) != nil")
	}

	red := color.RGBA{R: 255, A: 255}
	imgs := []Image{
		{Thumbnail: framegraph.Thumbnail{Label: "wide", Target: "x"}, RGBA: solid(200, 100, red)},
		{Thumbnail: framegraph.Thumbnail{Label: "tall", Target: "y"}, RGBA: solid(50, 100, red)},
		{Thumbnail: framegraph.Thumbnail{Label: "square", Target: "z"}, RGBA: solid(10, 10, red)},
	}
	opts := SheetOptions{CellWidth: 100, Columns: 2, Padding: 4}
	sheet := ContactSheet(imgs, opts)

	// Tallest scaled image is 50x100 -> 100x200.
	lineHeight := 13
	cellW, cellH := 100+8, 200+lineHeight+8
	if got, want := sheet.Bounds(), image.Rect(0, 0, 2*cellW, 2*cellH); got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
	if got := sheet.RGBAAt(4+50, 4+25); got != red {
		t.Errorf("center of first image = %v, want red", got)
	}
	if got := sheet.RGBAAt(0, 0); got != (color.RGBA{32, 32, 32, 255}) {
		t.Errorf("padding = %v, want background", got)
	}
}
