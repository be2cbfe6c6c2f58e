// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command fgdemo replays a YAML frame script through the framegraph
// renderer on the noop HAL backend and reports what the scheduler did.
//
// Usage:
//
//	fgdemo [-script frame.yaml] [-frames n] [-sheet thumbs.png] [-v]
package main

import (
	"bytes"
	_ "embed"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/blit"
	"github.com/gogpu/framegraph/debugview"
	"github.com/gogpu/framegraph/internal/script"
)

//go:embed frame.yaml
var defaultScript []byte

func main() {
	var (
		scriptPath = flag.String("script", "", "frame script (default: built-in deferred frame)")
		frames     = flag.Int("frames", 0, "frames to run (default: the script's frames, or 1)")
		sheetPath  = flag.String("sheet", "", "write a thumbnail contact sheet PNG of the last frame")
		evictAge   = flag.Int("evict", framegraph.DefaultEvictionAge, "frames an unused pooled texture survives")
		verbose    = flag.Bool("v", false, "log scheduler decisions")
	)
	flag.Parse()

	if *verbose {
		framegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	s, err := loadScript(*scriptPath)
	if err != nil {
		log.Fatal(err)
	}
	n := *frames
	if n <= 0 {
		n = max(s.Frames, 1)
	}

	if err := run(s, n, *sheetPath, *evictAge); err != nil {
		log.Fatal(err)
	}
}

func loadScript(path string) (*script.Script, error) {
	if path == "" {
		return script.Parse(bytes.NewReader(defaultScript))
	}
	return script.Load(path)
}

func run(s *script.Script, frames int, sheetPath string, evictAge int) error {
	device, queue := &noop.Device{}, &noop.Queue{}
	r, err := framegraph.NewRenderer(device, queue,
		framegraph.WithEvictionAge(evictAge),
		framegraph.WithLabelPrefix("fgdemo"),
		framegraph.WithDebugThumbnails(sheetPath != ""),
	)
	if err != nil {
		return err
	}
	defer r.Destroy()

	bl, err := blit.New(device)
	if err != nil {
		return err
	}
	defer bl.Destroy()

	opts := script.Options{
		Blitter: bl,
		Trace: func(p script.Pass, scope *framegraph.PassScope) {
			w, h, samples := scope.Size()
			framegraph.Logger().Debug("fgdemo: pass", "name", p.Name, "size", fmt.Sprintf("%dx%d@%d", w, h, samples))
		},
	}
	for i := range frames {
		b := r.NewGraphBuilder()
		if _, err := s.Replay(b, opts); err != nil {
			r.Discard(b)
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
		if err := r.Execute(b); err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
		fmt.Printf("frame %d\n%s%s\n", i+1, r.LastFrame(), r.Stats())
	}

	if sheetPath != "" {
		return writeSheet(device, queue, r.LastFrame(), sheetPath)
	}
	return nil
}

func writeSheet(device hal.Device, queue hal.Queue, frame framegraph.FrameInfo, path string) error {
	imgs, err := debugview.ReadThumbnails(device, queue, frame.Thumbnails)
	if err != nil {
		log.Printf("some thumbnails were skipped: %v", err)
	}
	sheet := debugview.ContactSheet(imgs, debugview.SheetOptions{})
	if sheet == nil {
		log.Printf("no thumbnails captured; %s not written", path)
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, sheet); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("contact sheet saved to %s (%d thumbnails)", path, len(imgs))
	return nil
}
