package tracker

import "sync"

// registry maps worker ids to entries. Entries are created on first use and
// never removed.
type registry struct {
	mu      sync.Mutex
	entries map[string]*workerEntry
	order   []*workerEntry
	create  func(id string) *workerEntry
}

func newRegistry(create func(id string) *workerEntry) *registry {
	return &registry{
		entries: make(map[string]*workerEntry),
		create:  create,
	}
}

func (r *registry) getOrCreate(id string) *workerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		return entry
	}
	entry := r.create(id)
	r.entries[id] = entry
	r.order = append(r.order, entry)
	return entry
}

func (r *registry) lookup(id string) (*workerEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// all returns entries in creation order.
func (r *registry) all() []*workerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*workerEntry(nil), r.order...)
}
