package httpclient

import (
	"context"
	"slices"
	"sync"
)

// Registry tracks cancel handles of in-flight requests by identifier.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	tasks map[string]registered
}

type registered struct {
	token  uint64
	cancel context.CancelFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]registered)}
}

// Register records cancel under id, replacing any earlier entry. The returned
// release removes the entry only while it is still this registration.
func (r *Registry) Register(id string, cancel context.CancelFunc) (release func()) {
	r.mu.Lock()
	r.next++
	token := r.next
	r.tasks[id] = registered{token: token, cancel: cancel}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if cur, ok := r.tasks[id]; ok && cur.token == token {
				delete(r.tasks, id)
			}
		})
	}
}

// Cancel cancels the request registered under id. It reports false when
// nothing is registered.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if ok {
		task.cancel()
	}
	return ok
}

// Len returns the number of in-flight requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// IDs returns the identifiers of in-flight requests, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}
