// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debugview

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SheetOptions controls the contact sheet layout. Zero values select the
// defaults.
type SheetOptions struct {
	// CellWidth is the width of each image cell in pixels. Default 192.
	CellWidth int
	// Columns is the number of cells per row. Default 4.
	Columns int
	// Padding is the gap around each cell. Default 8.
	Padding int
	// Background fills the sheet. Default dark gray.
	Background color.Color
	// Scaler resamples each thumbnail. Default xdraw.ApproxBiLinear.
	Scaler xdraw.Scaler
}

func (o SheetOptions) withDefaults() SheetOptions {
	if o.CellWidth <= 0 {
		o.CellWidth = 192
	}
	if o.Columns <= 0 {
		o.Columns = 4
	}
	if o.Padding <= 0 {
		o.Padding = 8
	}
	if o.Background == nil {
		o.Background = color.RGBA{R: 32, G: 32, B: 32, A: 255}
	}
	if o.Scaler == nil {
		o.Scaler = xdraw.ApproxBiLinear
	}
	return o
}

// ContactSheet draws images into a grid, each scaled to the cell width with
// its aspect ratio kept and captioned underneath. Cell height follows the
// tallest scaled image. It returns nil for an empty slice.
func ContactSheet(images []Image, opts SheetOptions) *image.RGBA {
	if len(images) == 0 {
		return nil
	}
	o := opts.withDefaults()
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()

	imageHeight := 1
	for _, img := range images {
		if h := scaledHeight(img.RGBA.Bounds(), o.CellWidth); h > imageHeight {
			imageHeight = h
		}
	}
	cellW := o.CellWidth + 2*o.Padding
	cellH := imageHeight + lineHeight + 2*o.Padding
	cols := min(o.Columns, len(images))
	rows := (len(images) + cols - 1) / cols

	sheet := image.NewRGBA(image.Rect(0, 0, cols*cellW, rows*cellH))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(o.Background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: sheet, Src: image.White, Face: face}
	for i, img := range images {
		x0 := (i%cols)*cellW + o.Padding
		y0 := (i/cols)*cellH + o.Padding

		dst := image.Rect(x0, y0, x0+o.CellWidth, y0+scaledHeight(img.RGBA.Bounds(), o.CellWidth))
		o.Scaler.Scale(sheet, dst, img.RGBA, img.RGBA.Bounds(), xdraw.Over, nil)

		d.Dot = fixed.P(x0, y0+imageHeight+face.Metrics().Ascent.Ceil())
		d.DrawString(clip(d, img.Caption(), o.CellWidth))
	}
	return sheet
}

func scaledHeight(b image.Rectangle, width int) int {
	if b.Dx() == 0 {
		return 0
	}
	return max(1, b.Dy()*width/b.Dx())
}

// clip shortens s until it fits in width pixels.
func clip(d *font.Drawer, s string, width int) string {
	r := []rune(s)
	for len(r) > 0 && d.MeasureString(string(r)).Ceil() > width {
		r = r[:len(r)-1]
	}
	return string(r)
}
