package lifetime

import (
	"slices"
	"testing"
)

func TestBindings_ReleaseDestroysInReverseOrder(t *testing.T) {
	b := NewBindings()
	var order []string
	b.Bind(7, DestroyFunc(func() { order = append(order, "staging") }))
	b.Bind(7, DestroyFunc(func() { order = append(order, "copy-semaphore") }))

	if b.Bound(7) != 2 {
		t.Fatalf("Bound(7) = %d, want 2", b.Bound(7))
	}
	if n := b.Release(7); n != 2 {
		t.Errorf("Release(7) = %d, want 2", n)
	}
	if want := []string{"copy-semaphore", "staging"}; !slices.Equal(order, want) {
		t.Errorf("destroy order = %v, want %v", order, want)
	}
	if b.Owners() != 0 {
		t.Errorf("Owners() = %d after release, want 0", b.Owners())
	}
}

func TestBindings_ReleaseUnknownOwner(t *testing.T) {
	b := NewBindings()
	if n := b.Release(42); n != 0 {
		t.Errorf("Release(42) = %d, want 0", n)
	}
}

func TestBindings_NilIgnored(t *testing.T) {
	b := NewBindings()
	b.Bind(1, nil)
	if b.Owners() != 0 {
		t.Errorf("nil binding should be ignored")
	}
}

func TestBindings_ChainedRelease(t *testing.T) {
	// Releasing owner 3 destroys a resource that releases owner 2, which in
	// turn destroys the resource bound to owner 1.
	b := NewBindings()
	released := map[uint64]bool{}
	b.Bind(1, DestroyFunc(func() { released[1] = true }))
	b.Bind(2, DestroyFunc(func() { b.Release(1); released[2] = true }))
	b.Bind(3, DestroyFunc(func() { b.Release(2); released[3] = true }))

	b.Release(3)

	for _, id := range []uint64{1, 2, 3} {
		if !released[id] {
			t.Errorf("owner %d chain not released", id)
		}
	}
	if b.Owners() != 0 {
		t.Errorf("Owners() = %d, want 0", b.Owners())
	}
}
