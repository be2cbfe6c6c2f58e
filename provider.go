// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by hosts that expose their HAL objects directly.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewRendererFromProvider creates a renderer that shares the device of a
// host application. The provider must either implement HalDevice() any and
// HalQueue() any, or return hal types from Device() and Queue().
// The provider's surface format becomes the renderer's SurfaceFormat.
func NewRendererFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Renderer, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, err
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append(opts, WithSurfaceFormat(f))
	}
	r, err := NewRenderer(device, queue, opts...)
	if err != nil {
		return nil, err
	}
	info := provider.AdapterInfo()
	slogger().Info("framegraph: renderer attached to provider", "adapter", info.Name, "type", info.Type,
		"surfaceFormat", r.SurfaceFormat())
	return r, nil
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	var devAny, queueAny any
	if hp, ok := provider.(halProvider); ok {
		devAny, queueAny = hp.HalDevice(), hp.HalQueue()
	} else {
		devAny, queueAny = provider.Device(), provider.Queue()
	}
	device, ok := devAny.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: device is %T", ErrNoHALProvider, devAny)
	}
	queue, ok := queueAny.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: queue is %T", ErrNoHALProvider, queueAny)
	}
	return device, queue, nil
}
