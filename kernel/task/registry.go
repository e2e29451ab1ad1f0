package task

import (
	"selos/kernel/sync"
)

// Registry maps opaque numeric tokens to live tasks so a task identity can
// cross an IPC boundary as a plain integer. Whoever holds the token owns
// the task.
type Registry struct {
	lock  sync.Spinlock
	next  uintptr
	tasks map[uintptr]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{next: 1, tasks: make(map[uintptr]*Task)}
}

// Export registers t and returns its token.
func (r *Registry) Export(t *Task) uintptr {
	r.lock.Acquire()
	defer r.lock.Release()

	token := r.next
	r.next++
	r.tasks[token] = t
	return token
}

// Resolve returns the task behind token, or nil if the token is unknown.
func (r *Registry) Resolve(token uintptr) *Task {
	r.lock.Acquire()
	defer r.lock.Release()
	return r.tasks[token]
}

// Release removes the token and returns the task it referenced, or nil.
// The task itself is not destroyed.
func (r *Registry) Release(token uintptr) *Task {
	r.lock.Acquire()
	defer r.lock.Release()

	t := r.tasks[token]
	delete(r.tasks, token)
	return t
}
