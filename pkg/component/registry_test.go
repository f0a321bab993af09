package component

import "testing"

type countingHandle struct{ closes int }

func (h *countingHandle) Close() error {
	h.closes++
	return nil
}

func TestTrackCloseIsIdempotent(t *testing.T) {
	h := &countingHandle{}
	close1 := trackClose("addr-a", h)

	if err := close1(); err != nil {
		t.Fatalf("close1() = %v, want nil", err)
	}
	if err := close1(); err != nil {
		t.Fatalf("second close1() = %v, want nil", err)
	}
	if h.closes != 1 {
		t.Fatalf("handle closed %d times, want 1", h.closes)
	}
	if _, ok := registry.Get("addr-a"); ok {
		t.Fatalf("registry should have removed addr-a after close")
	}
}

func TestTrackCloseDistinctAddressesAreIndependent(t *testing.T) {
	h1 := &countingHandle{}
	h2 := &countingHandle{}
	c1 := trackClose("addr-b", h1)
	c2 := trackClose("addr-c", h2)

	if err := c1(); err != nil {
		t.Fatalf("c1() = %v, want nil", err)
	}
	if h2.closes != 0 {
		t.Fatalf("closing addr-b must not affect addr-c's handle")
	}
	if err := c2(); err != nil {
		t.Fatalf("c2() = %v, want nil", err)
	}
	if h1.closes != 1 || h2.closes != 1 {
		t.Fatalf("expected exactly one close each, got %d and %d", h1.closes, h2.closes)
	}
}
