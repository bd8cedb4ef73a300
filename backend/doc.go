// Package backend is the registry of device backends.
//
// A device backend opens a [gpucore.Device] and optionally provides a
// [gpucore.WindowSystem]. Backends register themselves from init functions:
//
//	import _ "github.com/gogpu/gpuframe/backend/sim"
//	import _ "github.com/gogpu/gpuframe/backend/halgpu"
//
// # Backend Selection
//
//	b := backend.Get(backend.BackendSim)
//	if err := b.Init(); err != nil { ... }
//	defer b.Close()
//
//	ctx, err := gpuframe.NewContext(b.Device(), gpuframe.WithWindowSystem(b.WindowSystem()))
//
// InitDefault tries the registered backends by priority (halgpu, then sim)
// and returns the first that initializes.
package backend
