// Package factory resolves a JobRecord's plugin selector to a
// registered plugin, falling back to the NoOp plugin when the stage
// permits it. Ported 1:1 from the original's BaseJobFactory.create_job
// (job_factory.py).
package factory

import (
	"github.com/SUSE-Enceladus/mqsf/job"
	"github.com/SUSE-Enceladus/mqsf/mqerr"
	"github.com/SUSE-Enceladus/mqsf/plugins/noop"
	"github.com/SUSE-Enceladus/mqsf/registry"
)

// Factory resolves plugin names for one stage.
type Factory struct {
	serviceName string
	registry    *registry.Registry
	pluginKey   string
	canSkip     bool
}

// New returns a Factory for serviceName, reading the plugin selector
// from record[pluginKey] and falling back to the NoOp plugin when
// canSkip is true.
func New(serviceName string, reg *registry.Registry, pluginKey string, canSkip bool) *Factory {
	return &Factory{
		serviceName: serviceName,
		registry:    reg,
		pluginKey:   pluginKey,
		canSkip:     canSkip,
	}
}

// CreateJob resolves rec's plugin. It fails if the plugin selector
// field is absent, or if the named plugin is not registered and the
// stage cannot skip it.
func (f *Factory) CreateJob(rec *job.Record) (registry.PluginDescriptor, error) {
	name := rec.GetString(f.pluginKey)
	if name == "" {
		return registry.PluginDescriptor{}, mqerr.Plugin(nil, "no plugin specified")
	}

	if desc, ok := f.registry.Get(name); ok {
		return desc, nil
	}

	if f.canSkip {
		if desc, ok := f.registry.Get(noop.Name); ok {
			return desc, nil
		}
	}

	return registry.PluginDescriptor{}, mqerr.Plugin(nil, "plugin %s is not supported in %s", name, f.serviceName)
}
