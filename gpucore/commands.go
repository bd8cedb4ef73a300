package gpucore

// CommandKind identifies a recorded command.
type CommandKind uint8

// Command kinds.
const (
	CommandTransition CommandKind = iota
	CommandCopyBufferToImage
	CommandCopyBufferToBuffer
	CommandCopyImageToImage
	CommandNative
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case CommandTransition:
		return "transition"
	case CommandCopyBufferToImage:
		return "copy_buffer_to_image"
	case CommandCopyBufferToBuffer:
		return "copy_buffer_to_buffer"
	case CommandCopyImageToImage:
		return "copy_image_to_image"
	case CommandNative:
		return "native"
	default:
		return "unknown"
	}
}

// Command is one recorded GPU operation.
type Command interface {
	Kind() CommandKind
}

// TransitionCommand changes the layout of an image.
type TransitionCommand struct {
	Image     ImageID
	Format    TextureFormat
	OldLayout ImageLayout
	NewLayout ImageLayout
}

// Kind implements Command.
func (TransitionCommand) Kind() CommandKind { return CommandTransition }

// CopyBufferToImageCommand copies tightly packed texels from a buffer into
// mip level 0 of an image in the TransferDst layout.
type CopyBufferToImageCommand struct {
	Buffer BufferID
	Offset uint64
	Image  ImageID
	Width  uint32
	Height uint32

	// BytesPerRow is the row pitch of the buffer data.
	BytesPerRow uint32
}

// Kind implements Command.
func (CopyBufferToImageCommand) Kind() CommandKind { return CommandCopyBufferToImage }

// CopyBufferToBufferCommand copies a byte range between buffers.
type CopyBufferToBufferCommand struct {
	Src       BufferID
	SrcOffset uint64
	Dst       BufferID
	DstOffset uint64
	Size      uint64
}

// Kind implements Command.
func (CopyBufferToBufferCommand) Kind() CommandKind { return CommandCopyBufferToBuffer }

// CopyImageToImageCommand copies a region between two images with matching
// formats. Src must be in TransferSrc and Dst in TransferDst.
type CopyImageToImageCommand struct {
	Src    ImageID
	Dst    ImageID
	Width  uint32
	Height uint32
}

// Kind implements Command.
func (CopyImageToImageCommand) Kind() CommandKind { return CommandCopyImageToImage }

// NativeCommand carries backend-specific work (draws, dispatches) that
// gpuframe does not interpret.
type NativeCommand struct {
	Name    string
	Payload any
}

// Kind implements Command.
func (NativeCommand) Kind() CommandKind { return CommandNative }

// CommandList is an ended, submittable sequence of commands.
type CommandList struct {
	Label    string
	Commands []Command
}

// SubmitInfo describes one queue submission.
//
// WaitSemaphores and WaitStages correspond one-to-one.
type SubmitInfo struct {
	Label string

	CommandLists []*CommandList

	WaitSemaphores []SemaphoreID
	WaitStages     []PipelineStage

	SignalSemaphores []SemaphoreID

	// Fence, when not InvalidID, is signaled once all command lists complete.
	Fence FenceID
}
