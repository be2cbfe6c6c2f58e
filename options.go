// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import "github.com/gogpu/gputypes"

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := framegraph.NewRenderer(device, queue,
//		framegraph.WithEvictionAge(2),
//		framegraph.WithLabelPrefix("scene"),
//	)
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	evictionAge    int
	labelPrefix    string
	thumbnails     bool
	thumbnailLimit int
	surfaceFormat  gputypes.TextureFormat
}

// DefaultEvictionAge is the number of unused scheduling cycles after which a
// pooled resource is destroyed.
const DefaultEvictionAge = 1

// DefaultThumbnailLimit bounds the number of thumbnails captured per frame.
const DefaultThumbnailLimit = 16

func defaultOptions() options {
	return options{
		evictionAge:    DefaultEvictionAge,
		labelPrefix:    "fg",
		thumbnailLimit: DefaultThumbnailLimit,
		surfaceFormat:  gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithEvictionAge sets how many scheduling cycles a free pooled resource
// survives before it is destroyed. Values below 1 are clamped to 1.
func WithEvictionAge(n int) Option {
	return func(o *options) {
		o.evictionAge = max(n, 1)
	}
}

// WithLabelPrefix sets the prefix of every GPU object label the renderer creates.
func WithLabelPrefix(prefix string) Option {
	return func(o *options) {
		o.labelPrefix = prefix
	}
}

// WithDebugThumbnails enables capture of PushDebugThumbnail requests.
// Captured thumbnails are listed in Renderer.LastFrame.
func WithDebugThumbnails(enabled bool) Option {
	return func(o *options) {
		o.thumbnails = enabled
	}
}

// WithThumbnailLimit bounds the number of thumbnails captured per frame.
func WithThumbnailLimit(n int) Option {
	return func(o *options) {
		o.thumbnailLimit = max(n, 0)
	}
}

// WithSurfaceFormat sets the format reported by Renderer.SurfaceFormat when
// the renderer was not created from a provider.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.surfaceFormat = f
	}
}
