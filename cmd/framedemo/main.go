// Command framedemo drives the gpuframe frame loop for a fixed number of
// frames and reports the pacing counters.
//
// Every few frames it uploads a 1x1 texture and hands the upload's
// completion semaphore to the window as an extra dependency, so the frame
// that samples the texture waits for the copy.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gpuframe"
	"github.com/gogpu/gpuframe/backend"
	"github.com/gogpu/gpuframe/backend/halgpu"
	_ "github.com/gogpu/gpuframe/backend/sim"
	"github.com/gogpu/gpuframe/gpucore"
)

func main() {
	var (
		configPath  = flag.String("config", "", "window configuration file (TOML)")
		frames      = flag.Int("frames", 120, "number of frames to render")
		backendName = flag.String("backend", "", "device backend (halgpu, sim); empty selects the best available")
		uploadEvery = flag.Int("upload-every", 30, "upload a texture every N frames (0 disables)")
		verbose     = flag.Bool("v", false, "log per-frame diagnostics")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	gpuframe.SetLogger(logger)
	halgpu.SetLogger(logger)

	if err := run(logger, *configPath, *backendName, *frames, *uploadEvery); err != nil {
		log.Fatalf("framedemo: %v", err)
	}
}

func openBackend(name string) (backend.DeviceBackend, error) {
	if name == "" {
		return backend.InitDefault()
	}
	b := backend.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q (registered: %v)", backend.ErrBackendNotAvailable, name, backend.Available())
	}
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

func run(logger *slog.Logger, configPath, backendName string, frames, uploadEvery int) error {
	var opts []gpuframe.WindowOption
	if configPath != "" {
		cfg, err := gpuframe.LoadWindowConfig(configPath)
		if err != nil {
			return err
		}
		opts = cfg.Options()
	}

	b, err := openBackend(backendName)
	if err != nil {
		return err
	}
	defer b.Close()
	logger.Info("backend ready", "name", b.Name())

	ctx, err := gpuframe.NewContext(b.Device(),
		gpuframe.WithLogger(logger),
		gpuframe.WithWindowSystem(b.WindowSystem()),
	)
	if err != nil {
		return err
	}
	defer ctx.Close()

	w := ctx.NewWindow(opts...)
	if err := w.Open(); err != nil {
		return err
	}
	r := w.Resolved()
	logger.Info("window open",
		"extent", fmt.Sprintf("%dx%d", r.Extent.Width, r.Extent.Height),
		"images", r.PresentableImages, "mode", r.PresentMode, "frames_in_flight", r.ConcurrentFrames)

	var textures []*gpuframe.Image
	defer func() {
		for _, img := range textures {
			img.Destroy()
		}
	}()

	for i := range frames {
		if uploadEvery > 0 && i%uploadEvery == 0 {
			color := [4]byte{byte(i), 0x80, 0xff - byte(i), 0xff}
			img, err := ctx.Create1pxTexture(color, true, gpuframe.ImageUsageSampled, func(s *gpuframe.Semaphore) {
				if err := w.SetExtraSemaphoreDependency(s); err != nil {
					logger.Warn("dropping upload dependency", "error", err)
					s.Destroy()
				}
			})
			if err != nil {
				return fmt.Errorf("upload at frame %d: %w", i, err)
			}
			textures = append(textures, img)
		}

		cb := ctx.NewCommandBuffer("scene")
		if err := cb.BeginRecording(); err != nil {
			return err
		}
		if err := cb.Record(gpucore.NativeCommand{Name: "draw scene"}); err != nil {
			return err
		}
		if err := cb.EndRecording(); err != nil {
			return err
		}

		err := w.RenderFrame(cb)
		switch {
		case err == nil:
		case errors.Is(err, gpuframe.ErrOutOfDate):
			logger.Info("swapchain out of date, recreating", "frame", w.CurrentFrame())
			if err := w.Recreate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("frame %d: %w", w.CurrentFrame(), err)
		}
		if w.RecreationRequired() {
			if err := w.Recreate(); err != nil {
				return err
			}
		}
	}

	if err := ctx.WaitIdle(); err != nil {
		return err
	}
	st := w.Stats()
	logger.Info("done",
		"frames", st.Frames,
		"fence_waits", st.FenceWaits,
		"reclaims", st.Reclaims,
		"submissions", st.Submissions,
		"presents", st.Presents,
		"released", st.ReleasedResources,
		"recreations", st.Recreations)
	return nil
}
