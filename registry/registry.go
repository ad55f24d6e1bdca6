// Package registry is the plugin table every stage's job factory
// resolves a record's plugin selector against: a name-keyed map of
// PluginDescriptor, populated once at startup.
package registry

import (
	"sync"

	"github.com/SUSE-Enceladus/mqsf/job"
	"github.com/SUSE-Enceladus/mqsf/mqlog"
)

// RunTask runs a plugin's workload against rec, mutating it in place
// (setting its status and any result fields) and logging through log.
// A returned error is treated as an unhandled plugin exception (spec
// §4.6/§7): the engine marks the record EXCEPTION and appends the
// error, regardless of what RunTask already wrote to the record.
type RunTask func(rec *job.Record, log *mqlog.JobLogger) error

// PluginDescriptor names a plugin and its workload function.
type PluginDescriptor struct {
	Name    string
	RunTask RunTask
}

// Registry is a concurrency-safe name -> PluginDescriptor map.
// Grounded on the teacher's sync.RWMutex-guarded registry map, trimmed
// from HTTP-based service discovery down to a process-local, one-shot
// registration table.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginDescriptor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{plugins: make(map[string]PluginDescriptor)}
}

// Register adds a plugin under name, overwriting any existing
// registration for that name. Intended to be called only during
// startup, before the engine begins consuming (spec §4.3: "one-shot").
func (r *Registry) Register(desc PluginDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[desc.Name] = desc
}

// Get looks up a plugin by name.
func (r *Registry) Get(name string) (PluginDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.plugins[name]
	return desc, ok
}

// Names returns every registered plugin name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	return names
}
