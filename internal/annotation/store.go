package annotation

// Store is the ordered sequence of committed annotations. The index of an
// entry is its identity; deleting shifts the indices of later entries.
// Store is not safe for concurrent use.
type Store struct {
	items []Annotation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Len returns the number of annotations.
func (s *Store) Len() int { return len(s.items) }

// Add appends a and returns its index.
func (s *Store) Add(a Annotation) int {
	s.items = append(s.items, a.Clone())
	return len(s.items) - 1
}

// Get returns a copy of the annotation at i.
func (s *Store) Get(i int) (Annotation, bool) {
	if i < 0 || i >= len(s.items) {
		return Annotation{}, false
	}
	return s.items[i].Clone(), true
}

// Set replaces the annotation at i. Stale indices are ignored.
func (s *Store) Set(i int, a Annotation) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	s.items[i] = a.Clone()
	return true
}

// Delete removes the annotation at i. Stale indices are ignored.
func (s *Store) Delete(i int) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Clear removes every annotation.
func (s *Store) Clear() {
	s.items = nil
}

// All returns a copy of every annotation in store order.
func (s *Store) All() []Annotation {
	out := make([]Annotation, len(s.items))
	for i, a := range s.items {
		out[i] = a.Clone()
	}
	return out
}
