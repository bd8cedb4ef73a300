package gpuframe

import (
	"fmt"

	"github.com/gogpu/gpuframe/gpucore"
)

// PresentationMode is the application-level presentation policy.
type PresentationMode uint8

// Presentation modes.
const (
	// TripleBuffering presents through a replace-on-present queue (mailbox).
	// It is the default.
	TripleBuffering PresentationMode = iota

	// Immediate presents without waiting for vertical blank.
	Immediate

	// DoubleBuffering uses relaxed FIFO: vsynced, tearing when late.
	DoubleBuffering

	// VSync uses strict FIFO presentation.
	VSync
)

// String returns the configuration name of the mode.
func (m PresentationMode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case DoubleBuffering:
		return "double_buffering"
	case VSync:
		return "vsync"
	case TripleBuffering:
		return "triple_buffering"
	default:
		return fmt.Sprintf("PresentationMode(%d)", uint8(m))
	}
}

// ParsePresentationMode parses a configuration name as returned by String.
func ParsePresentationMode(name string) (PresentationMode, error) {
	switch name {
	case "immediate":
		return Immediate, nil
	case "double_buffering":
		return DoubleBuffering, nil
	case "vsync":
		return VSync, nil
	case "triple_buffering":
		return TripleBuffering, nil
	default:
		return 0, fmt.Errorf("%w: unknown presentation mode %q", ErrInvalidConfig, name)
	}
}

// PresentMode maps m to the platform present mode.
// It panics for values outside the declared constants.
func (m PresentationMode) PresentMode() gpucore.PresentMode {
	switch m {
	case Immediate:
		return gpucore.PresentModeImmediate
	case DoubleBuffering:
		return gpucore.PresentModeFifoRelaxed
	case VSync:
		return gpucore.PresentModeFifo
	case TripleBuffering:
		return gpucore.PresentModeMailbox
	default:
		panic(fmt.Sprintf("gpuframe: invalid presentation mode %d", uint8(m)))
	}
}
