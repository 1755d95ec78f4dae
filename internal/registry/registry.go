// Package registry tracks live websocket connections. It is the only state
// shared across connection goroutines, so all access goes through the
// mutex-guarded Registry; connection handlers never touch the map directly.
package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/metrics"
)

// Entry describes one registered connection.
type Entry struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry is a concurrency-safe map of connection id to entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	logger  *zap.Logger
}

// New returns an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		logger:  logger,
	}
}

// Register adds a connection under id. Registration happens once per accepted
// connection, before the receive loop starts.
func (r *Registry) Register(id, remoteAddr string) {
	r.mu.Lock()
	r.entries[id] = Entry{ID: id, RemoteAddr: remoteAddr, ConnectedAt: time.Now().UTC()}
	size := len(r.entries)
	r.mu.Unlock()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(size))
	r.logger.Info("Connection registered",
		zap.String("connection_id", id),
		zap.String("remote_addr", remoteAddr),
		zap.Int("active", size),
	)
}

// Unregister removes a connection. Safe to call for ids that were already
// removed; teardown paths may overlap.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, existed := r.entries[id]
	delete(r.entries, id)
	size := len(r.entries)
	r.mu.Unlock()

	if !existed {
		return
	}
	metrics.ConnectionsActive.Set(float64(size))
	r.logger.Info("Connection unregistered",
		zap.String("connection_id", id),
		zap.Int("active", size),
	)
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered connection ids in stable (sorted) order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Contains reports whether id is currently registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}
