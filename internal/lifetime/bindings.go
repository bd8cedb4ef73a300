package lifetime

import "sync"

// Destroyer is a resource that can be released.
type Destroyer interface {
	Destroy()
}

// DestroyFunc adapts a function to Destroyer.
type DestroyFunc func()

// Destroy calls f.
func (f DestroyFunc) Destroy() { f() }

// Bindings associates resources with the completion event that must happen
// before they may be released.
//
// Owners are opaque keys (semaphore IDs). Resources bound to the same owner
// are released in reverse binding order, so a resource bound after its
// dependencies is destroyed before them. Bindings is safe for concurrent use.
type Bindings struct {
	mu    sync.Mutex
	bound map[uint64][]Destroyer
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{bound: make(map[uint64][]Destroyer)}
}

// Bind ties res to owner. A nil res is ignored.
func (b *Bindings) Bind(owner uint64, res Destroyer) {
	if res == nil {
		return
	}
	b.mu.Lock()
	b.bound[owner] = append(b.bound[owner], res)
	b.mu.Unlock()
}

// Release destroys every resource bound to owner and forgets the owner.
// Resources are destroyed outside the lock so they may release bindings of
// their own. It returns the number of resources released.
func (b *Bindings) Release(owner uint64) int {
	b.mu.Lock()
	list := b.bound[owner]
	delete(b.bound, owner)
	b.mu.Unlock()

	for i := len(list) - 1; i >= 0; i-- {
		list[i].Destroy()
	}
	return len(list)
}

// Bound returns the number of resources currently bound to owner.
func (b *Bindings) Bound(owner uint64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bound[owner])
}

// Owners returns the number of owners with at least one binding.
func (b *Bindings) Owners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bound)
}
