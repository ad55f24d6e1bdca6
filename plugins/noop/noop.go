// Package noop implements the built-in no-op plugin the factory falls
// back to when no_op_okay is set and a record's plugin selector is not
// registered. Ported from the original's no_op_job.py.
package noop

import (
	"github.com/SUSE-Enceladus/mqsf/job"
	"github.com/SUSE-Enceladus/mqsf/mqlog"
	"github.com/SUSE-Enceladus/mqsf/registry"
)

// Name is the registry key the NoOp plugin is always registered under.
const Name = "NoOpJob"

// Descriptor returns the NoOp plugin's registration: it marks the
// record successful and passes it through unchanged.
func Descriptor() registry.PluginDescriptor {
	return registry.PluginDescriptor{
		Name:    Name,
		RunTask: RunTask,
	}
}

// RunTask is the NoOp plugin's workload: no transformation, SUCCESS.
func RunTask(rec *job.Record, log *mqlog.JobLogger) error {
	rec.SetStatus(job.StatusSuccess)
	log.Debug("no-op plugin ran, record passed through unchanged")
	return nil
}
