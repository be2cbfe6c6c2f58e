// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/internal/haltest"
)

// testProvider returns its device and queue from Device and Queue.
type testProvider struct {
	device any
	queue  any
	format gputypes.TextureFormat
}

func (p *testProvider) Device() gpucontext.Device             { return p.device }
func (p *testProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *testProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *testProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *testProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeSoftware}
}

// halTestProvider hides its HAL objects behind HalDevice and HalQueue.
type halTestProvider struct {
	testProvider
	halDevice, halQueue any
}

func (p *halTestProvider) HalDevice() any { return p.halDevice }
func (p *halTestProvider) HalQueue() any  { return p.halQueue }

func TestNewRendererFromProvider(t *testing.T) {
	dev, queue := haltest.New()

	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		wantErr  error
	}{
		{"device and queue", &testProvider{device: dev, queue: queue, format: gputypes.TextureFormatRGBA8Unorm}, nil},
		{"hal accessors", &halTestProvider{
			testProvider: testProvider{device: "wrapper", queue: "wrapper", format: gputypes.TextureFormatRGBA8Unorm},
			halDevice:    dev, halQueue: queue,
		}, nil},
		{"not hal", &testProvider{device: "device", queue: "queue"}, ErrNoHALProvider},
		{"missing queue", &testProvider{device: dev}, ErrNoHALProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRendererFromProvider(tt.provider)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRendererFromProvider() = %v", err)
			}
			defer r.Destroy()
			if r.Device() != dev {
				t.Error("renderer does not use the provider's device")
			}
			if r.SurfaceFormat() != gputypes.TextureFormatRGBA8Unorm {
				t.Errorf("SurfaceFormat() = %v", r.SurfaceFormat())
			}
		})
	}
}
