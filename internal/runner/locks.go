package runner

import (
	"sort"
	"sync"
)

// ResourceLockManager provides per-key mutual exclusion for operations that
// declare shared resources (output directories, registries, ports). Each key
// gets its own mutex, so operations contending for different resources still
// run concurrently.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-key mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given key, creating it on first use.
func (r *ResourceLockManager) Lock(key string) {
	r.mu.Lock()
	keyLock, exists := r.locks[key]
	if !exists {
		keyLock = &sync.Mutex{}
		r.locks[key] = keyLock
	}
	r.mu.Unlock()

	// Acquire outside the manager lock to avoid serializing unrelated keys.
	keyLock.Lock()
}

// Unlock releases the mutex for the given key.
func (r *ResourceLockManager) Unlock(key string) {
	r.mu.Lock()
	keyLock, exists := r.locks[key]
	r.mu.Unlock()

	if exists {
		keyLock.Unlock()
	}
}

// LockAll acquires locks for ALL given keys.
// Keys are sorted lexicographically before acquisition to prevent deadlocks
// between operations holding overlapping key sets.
func (r *ResourceLockManager) LockAll(keys []string) {
	if len(keys) == 0 {
		return
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for _, key := range sorted {
		r.Lock(key)
	}
}

// UnlockAll releases locks for all given keys, in reverse sorted order for
// symmetry with LockAll.
func (r *ResourceLockManager) UnlockAll(keys []string) {
	if len(keys) == 0 {
		return
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}
