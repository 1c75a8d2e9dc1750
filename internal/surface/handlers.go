package surface

// Handlers is an ordered set of callbacks. It is not safe for concurrent
// use; surfaces guard it with their own lock and call Snapshot before
// invoking handlers outside that lock.
type Handlers[T any] struct {
	next int
	fns  []handler[T]
}

type handler[T any] struct {
	id int
	fn func(T)
}

// Add registers fn and returns its id for Remove.
func (h *Handlers[T]) Add(fn func(T)) int {
	h.next++
	h.fns = append(h.fns, handler[T]{id: h.next, fn: fn})
	return h.next
}

func (h *Handlers[T]) Remove(id int) {
	for i, e := range h.fns {
		if e.id == id {
			h.fns = append(h.fns[:i], h.fns[i+1:]...)
			return
		}
	}
}

// Snapshot copies the handlers in registration order.
func (h *Handlers[T]) Snapshot() []func(T) {
	out := make([]func(T), len(h.fns))
	for i, e := range h.fns {
		out[i] = e.fn
	}
	return out
}

func (h *Handlers[T]) Len() int { return len(h.fns) }
