package surface

import "testing"

func TestHandlersAddRemoveSnapshot(t *testing.T) {
	var h Handlers[int]
	var got []int
	a := h.Add(func(v int) { got = append(got, v) })
	h.Add(func(v int) { got = append(got, v*10) })

	fns := h.Snapshot()
	h.Remove(a)
	if h.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", h.Len())
	}
	for _, fn := range fns {
		fn(2)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 20 {
		t.Fatalf("snapshot calls = %v; want [2 20] in registration order", got)
	}

	h.Remove(a)
	if h.Len() != 1 {
		t.Fatalf("Len() after removing twice = %d; want 1", h.Len())
	}
	if b := h.Add(func(int) {}); b == a {
		t.Fatalf("Add() reused id %d", a)
	}
}
