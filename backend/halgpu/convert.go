// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuframe/gpucore"
)

// copyRowAlignment is the row pitch alignment required for texture copies
// through a buffer.
const copyRowAlignment = 256

func alignRow(bytesPerRow uint32) uint32 {
	return (bytesPerRow + copyRowAlignment - 1) &^ (copyRowAlignment - 1)
}

// convertTextureFormat converts a gpucore format to its gputypes equivalent.
func convertTextureFormat(f gpucore.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case gpucore.TextureFormatBGRA8UnormSRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case gpucore.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm
	case gpucore.TextureFormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float
	case gpucore.TextureFormatDepth24PlusStencil8:
		return gputypes.TextureFormatDepth24PlusStencil8
	default:
		return gputypes.TextureFormatUndefined
	}
}

// textureFormatFromGPUTypes maps a gputypes format back to gpucore, or
// returns TextureFormatUndefined for formats gpucore does not name.
func textureFormatFromGPUTypes(f gputypes.TextureFormat) gpucore.TextureFormat {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return gpucore.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return gpucore.TextureFormatRGBA8UnormSRGB
	case gputypes.TextureFormatBGRA8Unorm:
		return gpucore.TextureFormatBGRA8Unorm
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return gpucore.TextureFormatBGRA8UnormSRGB
	default:
		return gpucore.TextureFormatUndefined
	}
}

// convertBufferUsage converts gpucore buffer usage flags. Host-visible
// buffers are filled through the queue and so always need CopyDst.
func convertBufferUsage(usage gpucore.BufferUsage, hostVisible bool) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if usage.Contains(gpucore.BufferUsageMapWrite) {
		out |= gputypes.BufferUsageMapWrite
	}
	if usage.Contains(gpucore.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if usage.Contains(gpucore.BufferUsageCopyDst) || hostVisible {
		out |= gputypes.BufferUsageCopyDst
	}
	if usage.Contains(gpucore.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if usage.Contains(gpucore.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if usage.Contains(gpucore.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if usage.Contains(gpucore.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

// convertImageUsage converts gpucore image usage flags.
func convertImageUsage(usage gpucore.ImageUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if usage&gpucore.ImageUsageTransferSrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if usage&gpucore.ImageUsageTransferDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if usage&gpucore.ImageUsageSampled != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if usage&gpucore.ImageUsageStorage != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if usage&(gpucore.ImageUsageColorAttachment|gpucore.ImageUsageDepthStencilAttachment) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// layoutUsage returns the texture usage the hal barrier API expects for an
// image layout. The hal derives the native layout from the usage.
func layoutUsage(l gpucore.ImageLayout) gputypes.TextureUsage {
	switch l {
	case gpucore.ImageLayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case gpucore.ImageLayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	case gpucore.ImageLayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	case gpucore.ImageLayoutShaderReadOnly:
		return gputypes.TextureUsageTextureBinding
	case gpucore.ImageLayoutColorAttachment,
		gpucore.ImageLayoutDepthStencilAttachment,
		gpucore.ImageLayoutPresentSrc:
		return gputypes.TextureUsageRenderAttachment
	default:
		return gputypes.TextureUsage(0)
	}
}
