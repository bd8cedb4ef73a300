package gpuframe

import (
	"fmt"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/transfer"
)

// SemaphoreHandler takes ownership of a completion semaphore.
type SemaphoreHandler func(*Semaphore)

// HandleSemaphore passes s to h. With a nil handler it waits for the device
// to go idle and destroys s, releasing everything bound to it.
func (c *Context) HandleSemaphore(s *Semaphore, h SemaphoreHandler) error {
	if h != nil {
		h(s)
		return nil
	}
	if err := c.WaitIdle(); err != nil {
		return err
	}
	s.Destroy()
	return nil
}

// TransitionImageLayout records and submits a layout transition of img on
// the graphics queue. Ownership of waits moves to the returned semaphore.
// If img has a pending operation, waits must contain its semaphore.
func (c *Context) TransitionImageLayout(img *Image, layout gpucore.ImageLayout, waits []*Semaphore) (*Semaphore, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if err := img.checkOrdered(waits); err != nil {
		return nil, err
	}
	cb, err := c.recordOne("transition", gpucore.TransitionCommand{
		Image:     img.id,
		Format:    img.desc.Format,
		OldLayout: img.layout,
		NewLayout: layout,
	})
	if err != nil {
		return nil, err
	}
	sem, err := c.graphics.SubmitAndSignal(fmt.Sprintf("transition %s->%s", img.layout, layout), waits, cb)
	if err != nil {
		return nil, err
	}
	img.layout = layout
	img.pending = sem
	return sem, nil
}

// CopyBufferToImage copies src into dst on the transfer queue. dst must
// be in the TransferDst layout and src must hold exactly dst's texels.
func (c *Context) CopyBufferToImage(src *StagingBuffer, dst *Image, waits []*Semaphore) (*Semaphore, error) {
	dst.mu.Lock()
	defer dst.mu.Unlock()

	if dst.layout != gpucore.ImageLayoutTransferDst {
		return nil, fmt.Errorf("gpuframe: copy into image %d in layout %s", dst.id, dst.layout)
	}
	if src.size != dst.byteSize() {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s", ErrPayloadSize, src.size, dst.desc.Width, dst.desc.Height, dst.desc.Format)
	}
	if err := dst.checkOrdered(waits); err != nil {
		return nil, err
	}
	cb, err := c.recordOne("copy", gpucore.CopyBufferToImageCommand{
		Buffer:      src.id,
		Image:       dst.id,
		Width:       dst.desc.Width,
		Height:      dst.desc.Height,
		BytesPerRow: dst.desc.Width * dst.desc.Format.BytesPerPixel(),
	})
	if err != nil {
		return nil, err
	}
	sem, err := c.transfer.SubmitAndSignal("copy buffer->image", waits, cb)
	if err != nil {
		return nil, err
	}
	dst.pending = sem
	return sem, nil
}

// CopyImageToImage copies src into dst (same size and format) on the
// graphics queue, leaving both images in their target layouts. waits must
// contain the pending semaphores of both images.
func (c *Context) CopyImageToImage(src, dst *Image, waits []*Semaphore) (*Semaphore, error) {
	if src == dst {
		return nil, fmt.Errorf("gpuframe: copy image %d onto itself", src.id)
	}
	if src.desc.Width != dst.desc.Width || src.desc.Height != dst.desc.Height || src.desc.Format != dst.desc.Format {
		return nil, fmt.Errorf("gpuframe: copy between mismatched images %d and %d", src.id, dst.id)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()

	if err := src.checkOrdered(waits); err != nil {
		return nil, err
	}
	if err := dst.checkOrdered(waits); err != nil {
		return nil, err
	}

	cb, err := c.recordOne("copy_image",
		gpucore.TransitionCommand{Image: src.id, Format: src.desc.Format, OldLayout: src.layout, NewLayout: gpucore.ImageLayoutTransferSrc},
		gpucore.TransitionCommand{Image: dst.id, Format: dst.desc.Format, OldLayout: dst.layout, NewLayout: gpucore.ImageLayoutTransferDst},
		gpucore.CopyImageToImageCommand{Src: src.id, Dst: dst.id, Width: src.desc.Width, Height: src.desc.Height},
		gpucore.TransitionCommand{Image: src.id, Format: src.desc.Format, OldLayout: gpucore.ImageLayoutTransferSrc, NewLayout: src.TargetLayout()},
		gpucore.TransitionCommand{Image: dst.id, Format: dst.desc.Format, OldLayout: gpucore.ImageLayoutTransferDst, NewLayout: dst.TargetLayout()},
	)
	if err != nil {
		return nil, err
	}
	sem, err := c.graphics.SubmitAndSignal("copy image->image", waits, cb)
	if err != nil {
		return nil, err
	}
	src.layout, dst.layout = src.TargetLayout(), dst.TargetLayout()
	src.pending, dst.pending = sem, sem
	return sem, nil
}

// UploadImage moves data into img without blocking on the GPU.
//
// Three submissions run in order: a transition to TransferDst (graphics
// queue, waiting on waits), the buffer->image copy (transfer queue) and a
// transition to img's target layout (graphics queue). The returned
// semaphore signals completion. The staging buffer and every intermediate
// semaphore are released when it is destroyed.
//
// Ownership of waits moves into the upload once the first submission
// succeeds. Submission failures are returned and never retried.
func (c *Context) UploadImage(data []byte, img *Image, waits []*Semaphore) (*Semaphore, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	if uint64(len(data)) != img.byteSize() {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s", ErrPayloadSize, len(data), img.Width(), img.Height(), img.Format())
	}
	staging, err := c.CreateStagingBuffer(data)
	if err != nil {
		return nil, err
	}

	p := transfer.New(
		transfer.Stage[*Semaphore]{Name: "transition_to_transfer_dst", Run: func(w []*Semaphore) (*Semaphore, error) {
			s, err := c.TransitionImageLayout(img, gpucore.ImageLayoutTransferDst, w)
			if err != nil {
				return nil, err
			}
			return s.SetWaitStage(gpucore.StageTransfer), nil
		}},
		transfer.Stage[*Semaphore]{Name: "copy_buffer_to_image", Run: func(w []*Semaphore) (*Semaphore, error) {
			s, err := c.CopyBufferToImage(staging, img, w)
			if err != nil {
				return nil, err
			}
			return s.SetWaitStage(gpucore.StageTopOfPipe), nil
		}},
		transfer.Stage[*Semaphore]{Name: "transition_to_target", Run: func(w []*Semaphore) (*Semaphore, error) {
			s, err := c.TransitionImageLayout(img, img.TargetLayout(), w)
			if err != nil {
				return nil, err
			}
			return s.SetWaitStage(consumerStage(img.usage)), nil
		}},
	).OnHandoff(c.logHandoff)

	res, err := p.Run(waits)
	if err != nil {
		c.abandon(res, staging)
		return nil, fmt.Errorf("gpuframe: upload image %d: %w", img.id, err)
	}
	res.Final.Bind(staging)
	return res.Final, nil
}

// UploadBuffer copies data into a new device-local buffer through a staging
// buffer on the transfer queue. The staging buffer is released when the
// returned semaphore is destroyed.
func (c *Context) UploadBuffer(data []byte, usage gpucore.BufferUsage, waits []*Semaphore) (*DeviceBuffer, *Semaphore, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyPayload
	}
	staging, err := c.CreateStagingBuffer(data)
	if err != nil {
		return nil, nil, err
	}
	dst, err := c.CreateDeviceBuffer(uint64(len(data)), usage)
	if err != nil {
		staging.Destroy()
		return nil, nil, err
	}

	p := transfer.New[*Semaphore]().
		Then("copy_buffer_to_buffer", func(w []*Semaphore) (*Semaphore, error) {
			cb, err := c.recordOne("copy_buffer", gpucore.CopyBufferToBufferCommand{
				Src:  staging.id,
				Dst:  dst.id,
				Size: staging.size,
			})
			if err != nil {
				return nil, err
			}
			s, err := c.transfer.SubmitAndSignal("copy buffer->buffer", w, cb)
			if err != nil {
				return nil, err
			}
			return s.SetWaitStage(gpucore.StageAllCommands), nil
		}).
		OnHandoff(c.logHandoff)

	res, err := p.Run(waits)
	if err != nil {
		c.abandon(res, staging)
		dst.Destroy()
		return nil, nil, fmt.Errorf("gpuframe: upload buffer: %w", err)
	}
	res.Final.Bind(staging)
	return dst, res.Final, nil
}

// Create1pxTexture creates a 1x1 RGBA8 image filled with color and hands
// the upload's completion semaphore to handler (see HandleSemaphore).
func (c *Context) Create1pxTexture(color [4]byte, srgb bool, usage ImageUsage, handler SemaphoreHandler) (*Image, error) {
	format := gpucore.TextureFormatRGBA8Unorm
	if srgb {
		format = gpucore.TextureFormatRGBA8UnormSRGB
	}
	img, err := c.CreateImage(1, 1, format, usage)
	if err != nil {
		return nil, err
	}
	return c.finishUpload(img, color[:], handler)
}

// CreateImageFromFile decodes the image at path (flipped vertically),
// uploads it into a new RGBA8 image and hands the completion semaphore to
// handler. Decode failures wrap ErrImageLoad and name the path.
func (c *Context) CreateImageFromFile(path string, srgb bool, usage ImageUsage, handler SemaphoreHandler) (*Image, error) {
	px, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	format := gpucore.TextureFormatRGBA8Unorm
	if srgb {
		format = gpucore.TextureFormatRGBA8UnormSRGB
	}
	img, err := c.CreateImage(px.Width, px.Height, format, usage)
	if err != nil {
		return nil, err
	}
	return c.finishUpload(img, px.Data, handler)
}

func (c *Context) finishUpload(img *Image, data []byte, handler SemaphoreHandler) (*Image, error) {
	sem, err := c.UploadImage(data, img, nil)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	if err := c.HandleSemaphore(sem, handler); err != nil {
		sem.Destroy()
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (c *Context) recordOne(label string, cmds ...gpucore.Command) (*CommandBuffer, error) {
	cb := c.NewCommandBuffer(label)
	if err := cb.BeginRecording(); err != nil {
		return nil, err
	}
	if err := cb.Record(cmds...); err != nil {
		return nil, err
	}
	if err := cb.EndRecording(); err != nil {
		return nil, err
	}
	return cb, nil
}

// abandon releases a partially executed transfer chain.
func (c *Context) abandon(res transfer.Result[*Semaphore], staging *StagingBuffer) {
	if len(res.Trace) > 0 {
		if err := c.device.WaitIdle(); err != nil {
			c.logger.Warn("gpuframe: wait idle after failed transfer", "err", err)
		}
		res.Final.Destroy()
	}
	staging.Destroy()
}

func (c *Context) logHandoff(stage string, consumed []*Semaphore, out *Semaphore) {
	c.logger.Debug("gpuframe: transfer stage done", "stage", stage, "waits", len(consumed), "signal", out.id)
}

// consumerStage is the stage at which work using an image of usage u first
// touches it.
func consumerStage(u ImageUsage) gpucore.PipelineStage {
	switch u {
	case ImageUsageSampled:
		return gpucore.StageFragmentShader
	case ImageUsageTransferSrc:
		return gpucore.StageTransfer
	default:
		return gpucore.StageColorAttachmentOutput
	}
}
