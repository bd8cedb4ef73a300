package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU objects. Each backend maintains a mapping
// between IDs and actual native objects.

// SemaphoreID is an opaque handle to a GPU->GPU synchronization primitive.
type SemaphoreID uint64

// FenceID is an opaque handle to a GPU->CPU synchronization primitive.
type FenceID uint64

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// ImageID is an opaque handle to a GPU image.
type ImageID uint64

// WindowHandle is an opaque handle to an OS window.
type WindowHandle uint64

// InvalidID is the zero value, representing an invalid/null object.
const InvalidID = 0

// QueueType selects the queue a submission goes to.
type QueueType uint8

// Queue types.
const (
	// QueueGraphics executes render and layout-transition work.
	QueueGraphics QueueType = iota

	// QueueTransfer executes copy work.
	QueueTransfer

	// QueuePresent presents swapchain images.
	QueuePresent
)

// String returns the queue name.
func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueTransfer:
		return "transfer"
	case QueuePresent:
		return "present"
	default:
		return fmt.Sprintf("QueueType(%d)", uint8(q))
	}
}

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapWrite indicates the buffer can be written by the host.
	BufferUsageMapWrite BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 1

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 2

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 3

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 4

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 5

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 6
)

// Contains reports whether all bits of flag are set.
func (u BufferUsage) Contains(flag BufferUsage) bool {
	return u&flag == flag
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage BufferUsage

	// HostVisible requests host-visible, coherent memory (staging buffers).
	HostVisible bool
}

// TextureFormat specifies the format of image data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatUndefined is reported by surfaces that accept any format.
	TextureFormatUndefined TextureFormat = iota

	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA, normalized unsigned integer in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatBGRA8UnormSRGB is 8-bit BGRA, normalized unsigned integer in sRGB color space.
	TextureFormatBGRA8UnormSRGB

	// TextureFormatR8Unorm is 8-bit red channel only, normalized unsigned integer.
	TextureFormatR8Unorm

	// TextureFormatRGBA16Float is 16-bit RGBA, floating point.
	TextureFormatRGBA16Float

	// TextureFormatDepth24PlusStencil8 is a combined depth/stencil format.
	TextureFormatDepth24PlusStencil8
)

// IsSRGB reports whether the format stores color in the sRGB transfer function.
func (f TextureFormat) IsSRGB() bool {
	return f == TextureFormatRGBA8UnormSRGB || f == TextureFormatBGRA8UnormSRGB
}

// BytesPerPixel returns the size of one texel, or 0 for unknown formats.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB,
		TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSRGB,
		TextureFormatDepth24PlusStencil8:
		return 4
	case TextureFormatR8Unorm:
		return 1
	case TextureFormatRGBA16Float:
		return 8
	default:
		return 0
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUndefined:
		return "Undefined"
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatRGBA8UnormSRGB:
		return "RGBA8UnormSRGB"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatBGRA8UnormSRGB:
		return "BGRA8UnormSRGB"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	case TextureFormatRGBA16Float:
		return "RGBA16Float"
	case TextureFormatDepth24PlusStencil8:
		return "Depth24PlusStencil8"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint32(f))
	}
}

// ColorSpace is the presentation color space of a surface format.
type ColorSpace uint32

// Color spaces.
const (
	// ColorSpaceSRGBNonlinear is the standard sRGB nonlinear color space.
	ColorSpaceSRGBNonlinear ColorSpace = iota

	// ColorSpaceExtendedSRGBLinear is the extended-range linear sRGB color space.
	ColorSpaceExtendedSRGBLinear

	// ColorSpaceDisplayP3Nonlinear is the Display P3 nonlinear color space.
	ColorSpaceDisplayP3Nonlinear
)

// SurfaceFormat pairs a presentable format with its color space.
type SurfaceFormat struct {
	Format     TextureFormat
	ColorSpace ColorSpace
}

// ImageUsage is a bitmask specifying how an image will be used.
type ImageUsage uint32

// Image usage flags.
const (
	// ImageUsageTransferSrc indicates the image can be used as a copy source.
	ImageUsageTransferSrc ImageUsage = 1 << 0

	// ImageUsageTransferDst indicates the image can be used as a copy destination.
	ImageUsageTransferDst ImageUsage = 1 << 1

	// ImageUsageSampled indicates the image can be sampled in shaders.
	ImageUsageSampled ImageUsage = 1 << 2

	// ImageUsageStorage indicates the image can be bound as a storage image.
	ImageUsageStorage ImageUsage = 1 << 3

	// ImageUsageColorAttachment indicates the image can be rendered to.
	ImageUsageColorAttachment ImageUsage = 1 << 4

	// ImageUsageDepthStencilAttachment indicates the image can be a depth/stencil target.
	ImageUsageDepthStencilAttachment ImageUsage = 1 << 5
)

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	// Label is an optional debug label.
	Label string

	Width  uint32
	Height uint32

	Format TextureFormat
	Usage  ImageUsage

	// Samples is the sample count; 0 is treated as 1.
	Samples uint32
}

// ImageLayout describes how an image's memory is interpreted by the GPU.
type ImageLayout uint8

// Image layouts.
const (
	// ImageLayoutUndefined discards previous contents.
	ImageLayoutUndefined ImageLayout = iota

	// ImageLayoutGeneral supports all accesses.
	ImageLayoutGeneral

	// ImageLayoutTransferSrc is optimal for copy reads.
	ImageLayoutTransferSrc

	// ImageLayoutTransferDst is optimal for copy writes.
	ImageLayoutTransferDst

	// ImageLayoutShaderReadOnly is optimal for sampling.
	ImageLayoutShaderReadOnly

	// ImageLayoutColorAttachment is optimal for rendering.
	ImageLayoutColorAttachment

	// ImageLayoutDepthStencilAttachment is optimal for depth/stencil testing.
	ImageLayoutDepthStencilAttachment

	// ImageLayoutPresentSrc is required for presentation.
	ImageLayoutPresentSrc
)

// String returns the layout name.
func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutTransferSrc:
		return "TransferSrc"
	case ImageLayoutTransferDst:
		return "TransferDst"
	case ImageLayoutShaderReadOnly:
		return "ShaderReadOnly"
	case ImageLayoutColorAttachment:
		return "ColorAttachment"
	case ImageLayoutDepthStencilAttachment:
		return "DepthStencilAttachment"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	default:
		return fmt.Sprintf("ImageLayout(%d)", uint8(l))
	}
}

// PipelineStage names the point in the pipeline at which a semaphore wait
// takes effect.
type PipelineStage uint8

// Pipeline stages.
const (
	// StageTopOfPipe blocks all work.
	StageTopOfPipe PipelineStage = iota

	// StageTransfer blocks copy work.
	StageTransfer

	// StageFragmentShader blocks fragment shading.
	StageFragmentShader

	// StageColorAttachmentOutput blocks color attachment writes.
	StageColorAttachmentOutput

	// StageAllCommands blocks every command.
	StageAllCommands
)

// String returns the stage name.
func (s PipelineStage) String() string {
	switch s {
	case StageTopOfPipe:
		return "TopOfPipe"
	case StageTransfer:
		return "Transfer"
	case StageFragmentShader:
		return "FragmentShader"
	case StageColorAttachmentOutput:
		return "ColorAttachmentOutput"
	case StageAllCommands:
		return "AllCommands"
	default:
		return fmt.Sprintf("PipelineStage(%d)", uint8(s))
	}
}

// PresentMode is a platform presentation mode.
type PresentMode uint8

// Present modes.
const (
	// PresentModeImmediate presents without waiting for vertical blank.
	PresentModeImmediate PresentMode = iota

	// PresentModeMailbox replaces the queued image on each present.
	PresentModeMailbox

	// PresentModeFifo queues presents and waits for vertical blank.
	PresentModeFifo

	// PresentModeFifoRelaxed is FIFO that tears when a frame is late.
	PresentModeFifoRelaxed
)

// String returns the mode name.
func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFifo:
		return "Fifo"
	case PresentModeFifoRelaxed:
		return "FifoRelaxed"
	default:
		return fmt.Sprintf("PresentMode(%d)", uint8(m))
	}
}

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// SurfaceCapabilities reports the limits of a surface.
type SurfaceCapabilities struct {
	// MinImageCount is the minimum number of swapchain images.
	MinImageCount uint32

	// MaxImageCount is the maximum number of swapchain images.
	// A value of 0 means there is no limit.
	MaxImageCount uint32

	// CurrentExtent is the current surface size.
	CurrentExtent Extent2D
}

// LoadOp specifies what happens to an attachment at the start of a pass.
type LoadOp uint8

// Load operations.
const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

// StoreOp specifies what happens to an attachment at the end of a pass.
type StoreOp uint8

// Store operations.
const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// Attachment describes one framebuffer attachment.
type Attachment struct {
	// Label is an optional debug label.
	Label string

	Format  TextureFormat
	Samples uint32
	LoadOp  LoadOp
	StoreOp StoreOp

	// FinalLayout is the layout the attachment is left in after rendering.
	FinalLayout ImageLayout
}
