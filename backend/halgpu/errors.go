// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import "errors"

var (
	// ErrNoAdapter is returned by Open when no GPU adapter is available.
	ErrNoAdapter = errors.New("halgpu: no GPU adapter available")

	// ErrProviderNotHAL is returned by NewFromProvider when the provider does
	// not expose hal.Device and hal.Queue.
	ErrProviderNotHAL = errors.New("halgpu: provider does not expose HAL types")

	// ErrDeviceDestroyed is returned by every operation after Destroy.
	ErrDeviceDestroyed = errors.New("halgpu: device destroyed")

	// ErrUnknownObject is returned when an ID does not name a live object.
	ErrUnknownObject = errors.New("halgpu: unknown object")

	// ErrNoPendingSignal is returned when a submission waits on a semaphore
	// nothing has been scheduled to signal.
	ErrNoPendingSignal = errors.New("halgpu: wait on semaphore with no pending signal")

	// ErrSemaphorePending is returned when a submission signals a semaphore
	// that already carries an unconsumed signal.
	ErrSemaphorePending = errors.New("halgpu: semaphore already has a pending signal")

	// ErrFenceNotSubmitted is returned when waiting on a reset fence that no
	// submission will signal.
	ErrFenceNotSubmitted = errors.New("halgpu: fence not submitted")

	// ErrFenceInUse is returned when resetting or resubmitting a fence whose
	// submission has not completed.
	ErrFenceInUse = errors.New("halgpu: fence in use")

	// ErrNotHostVisible is returned by WriteBuffer for device-local buffers.
	ErrNotHostVisible = errors.New("halgpu: buffer is not host visible")

	// ErrUnsupportedCommand is returned for native commands whose payload is
	// not an EncodeFunc.
	ErrUnsupportedCommand = errors.New("halgpu: unsupported command")
)
