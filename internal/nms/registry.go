package nms

import (
	"sort"
	"sync"

	"tvrec/internal/recorder"
)

// Registry holds the registered recorders ordered by title, then device.
type Registry struct {
	mu   sync.RWMutex
	recs []recorder.Recorder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers rec unless a recorder with the same device is already known.
func (r *Registry) Add(rec recorder.Recorder) bool {
	if rec == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.recs {
		if existing.Device() == rec.Device() {
			return false
		}
	}
	r.recs = append(r.recs, rec)
	sort.SliceStable(r.recs, func(i, j int) bool {
		if r.recs[i].Title() != r.recs[j].Title() {
			return r.recs[i].Title() < r.recs[j].Title()
		}
		return r.recs[i].Device() < r.recs[j].Device()
	})
	return true
}

// Lookup finds the recorder for a device key.
func (r *Registry) Lookup(key string) (recorder.Recorder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.recs {
		if rec.Device() == key {
			return rec, true
		}
	}
	return nil, false
}

// Remove unregisters the recorder for a device key.
func (r *Registry) Remove(key string) (recorder.Recorder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.recs {
		if rec.Device() == key {
			r.recs = append(r.recs[:i:i], r.recs[i+1:]...)
			return rec, true
		}
	}
	return nil, false
}

// Recorders returns the registered recorders in order.
func (r *Registry) Recorders() []recorder.Recorder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]recorder.Recorder(nil), r.recs...)
}

// Len reports how many recorders are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recs)
}
