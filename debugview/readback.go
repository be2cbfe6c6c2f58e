// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package debugview turns the debug thumbnails captured by a framegraph
// Renderer into CPU images.
//
// ReadThumbnails copies each thumbnail texture into a staging buffer, waits
// for the device and converts the pixels to *image.RGBA. ContactSheet lays
// the images out in a labelled grid, suitable for writing to a PNG:
//
//	imgs, err := debugview.ReadThumbnails(r.Device(), r.Queue(), r.LastFrame().Thumbnails)
//	...
//	sheet := debugview.ContactSheet(imgs, debugview.SheetOptions{})
//	png.Encode(w, sheet)
package debugview

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph"
)

// ErrUnsupportedFormat is returned for thumbnails that are not 8-bit RGBA
// or BGRA.
var ErrUnsupportedFormat = errors.New("debugview: unsupported thumbnail format")

// copyPitchAlignment is the BytesPerRow alignment required for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// Image is a thumbnail read back to the CPU.
type Image struct {
	framegraph.Thumbnail
	RGBA *image.RGBA
}

// Caption returns the text drawn under the image on a contact sheet.
func (img Image) Caption() string {
	if img.Label != "" && img.Label != img.Target {
		return fmt.Sprintf("%s (%s)", img.Label, img.Target)
	}
	return fmt.Sprintf("%s/%s", img.Pass, img.Target)
}

// formatOrder reports whether f stores blue first and whether it can be
// read back at all.
func formatOrder(f gputypes.TextureFormat) (swapRB, ok bool) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		return false, true
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return true, true
	}
	return false, false
}

type pendingRead struct {
	thumb   framegraph.Thumbnail
	buf     hal.Buffer
	stride  uint32
	swizzle bool
}

// ReadThumbnails reads every thumbnail back with a single submission. It
// blocks until the device is idle. Thumbnails in unsupported formats are
// skipped and reported through the returned error together with any device
// failure; the images that could be read are still returned.
func ReadThumbnails(device hal.Device, queue hal.Queue, thumbs []framegraph.Thumbnail) ([]Image, error) {
	if len(thumbs) == 0 {
		return nil, nil
	}
	log := framegraph.Logger()

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "debugview_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("debugview_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	var errs []error
	var reads []pendingRead
	defer func() {
		for _, r := range reads {
			device.DestroyBuffer(r.buf)
		}
	}()

	for _, th := range thumbs {
		swizzle, ok := formatOrder(th.Format)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s is %s", ErrUnsupportedFormat, th.Target, th.Format))
			continue
		}
		stride := (th.Width*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "debugview_staging",
			Size:  uint64(stride) * uint64(th.Height),
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			encoder.DiscardEncoding()
			return nil, fmt.Errorf("create staging buffer: %w", err)
		}
		reads = append(reads, pendingRead{thumb: th, buf: buf, stride: stride, swizzle: swizzle})

		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: th.Texture,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageTextureBinding,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		encoder.CopyTextureToBuffer(th.Texture, buf, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: stride, RowsPerImage: th.Height},
			TextureBase:  hal.ImageCopyTexture{Texture: th.Texture},
			Size:         hal.Extent3D{Width: th.Width, Height: th.Height, DepthOrArrayLayers: 1},
		}})
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: th.Texture,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageTextureBinding,
			},
		}})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	if _, err := queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}

	images := make([]Image, 0, len(reads))
	for _, r := range reads {
		rgba, err := mapImage(device, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", r.thumb.Target, err))
			continue
		}
		images = append(images, Image{Thumbnail: r.thumb, RGBA: rgba})
	}
	log.Debug("debugview: thumbnails read back", "count", len(images), "skipped", len(thumbs)-len(images))
	return images, errors.Join(errs...)
}

// mapImage copies the staging buffer of r into a new image, dropping the
// row padding and reordering BGRA texels.
func mapImage(device hal.Device, r pendingRead) (*image.RGBA, error) {
	w, h := int(r.thumb.Width), int(r.thumb.Height)
	size := uint64(r.stride) * uint64(h)
	m, err := device.MapBuffer(r.buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	defer func() {
		if err := device.UnmapBuffer(r.buf); err != nil {
			framegraph.Logger().Warn("debugview: unmap failed", "err", err)
		}
	}()
	data := unsafe.Slice((*byte)(m.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		src := data[y*int(r.stride) : y*int(r.stride)+w*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(dst, src)
		if r.swizzle {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}
	return img, nil
}
