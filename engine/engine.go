// Package engine is the orchestrator wiring a stage's broker client,
// job store, plugin registry, factory, and scheduler together into the
// consume -> schedule -> publish pipeline described by the framework.
// Grounded on the original's MessageService (message_service.py) for
// lifecycle and sequencing, and on the teacher's cli/consumer.go for
// the Go idiom of a startup/shutdown-driven service.
package engine

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/SUSE-Enceladus/mqsf/broker"
	"github.com/SUSE-Enceladus/mqsf/config"
	"github.com/SUSE-Enceladus/mqsf/factory"
	"github.com/SUSE-Enceladus/mqsf/job"
	"github.com/SUSE-Enceladus/mqsf/mqlog"
	"github.com/SUSE-Enceladus/mqsf/plugins/noop"
	"github.com/SUSE-Enceladus/mqsf/registry"
	"github.com/SUSE-Enceladus/mqsf/scheduler"
	"github.com/SUSE-Enceladus/mqsf/store"
)

// Engine is one pipeline stage: it consumes result messages from the
// previous stage's exchange, runs a plugin per job, and publishes its
// own result to the next stage.
type Engine struct {
	serviceName string
	cfg         *config.View
	registry    *registry.Registry

	broker     *broker.Client
	jobStore   *store.Store
	jobFactory *factory.Factory
	scheduler  *scheduler.Scheduler

	mu   sync.Mutex
	jobs map[string]*job.Record

	stopOnce sync.Once
	eg       *errgroup.Group
	cancel   context.CancelFunc
}

// New returns an Engine for serviceName. reg is the caller's plugin
// registry — register any stage-specific plugins on it before calling
// Start; the NoOp plugin is added automatically if cfg permits it.
func New(serviceName string, cfg *config.View, reg *registry.Registry, brokerClient *broker.Client) *Engine {
	return &Engine{
		serviceName: serviceName,
		cfg:         cfg,
		registry:    reg,
		broker:      brokerClient,
		jobs:        make(map[string]*job.Record),
	}
}

// Start runs the engine's full startup sequence (spec §4.6) and then
// blocks, consuming deliveries, until Stop is called or an
// unrecoverable error occurs in the consume loop or event pump.
func (e *Engine) Start() error {
	if err := e.broker.Connect(); err != nil {
		return err
	}

	if err := mqlog.AttachFile(e.cfg.LogFile(e.serviceName)); err != nil {
		return err
	}

	jobStore, err := store.New(e.cfg.JobDir(e.serviceName))
	if err != nil {
		return err
	}
	e.jobStore = jobStore

	if e.cfg.NoOpOkay() {
		e.registry.Register(noop.Descriptor())
	}
	e.jobFactory = factory.New(e.serviceName, e.registry, e.cfg.PluginKey(), e.cfg.NoOpOkay())

	prevService := e.cfg.PreviousService()
	if err := e.broker.DeclareExchange(prevService); err != nil {
		return err
	}
	if err := e.broker.DeclareExchange(e.serviceName); err != nil {
		return err
	}

	inputQueue := broker.QueueName(prevService, "listener")
	if err := e.broker.DeclareQueue(inputQueue); err != nil {
		return err
	}
	if err := e.broker.Bind(prevService, inputQueue, broker.ListenerRoutingKey()); err != nil {
		return err
	}

	e.scheduler = scheduler.New(e.cfg.BaseThreadPoolCount())

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	eg, ctx := errgroup.WithContext(ctx)
	e.eg = eg

	eg.Go(func() error {
		e.pumpEvents()
		return nil
	})

	if err := e.recoverJobs(); err != nil {
		return err
	}

	e.installSignalHandlers()

	eg.Go(func() error {
		err := e.broker.Consume(inputQueue, e.onListenerMessage)
		// Consume returning at all — whether a clean StopConsuming or an
		// unexpected broker error — means this stage must shut down.
		// Without this, an unexpected error here would leave pumpEvents
		// blocked on scheduler.Events() forever, since only Stop drains
		// the scheduler and closes that channel.
		e.Stop()
		return err
	})

	return eg.Wait()
}

// recoverJobs enumerates the job store and re-ingests every record
// through the same path as a fresh delivery, so a crashed stage
// resumes work left on disk (spec §4.6 step 7 / §8 P4).
func (e *Engine) recoverJobs() error {
	records, err := e.jobStore.Enumerate(func(path string, err error) {
		mqlog.Logger.WithField("path", path).WithError(err).Warn("skipping unreadable job file during recovery")
	})
	if err != nil {
		return err
	}

	for _, rec := range records {
		e.ingest(rec)
	}
	return nil
}

// installSignalHandlers triggers graceful shutdown on SIGINT/SIGTERM.
func (e *Engine) installSignalHandlers() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		mqlog.Logger.WithField("signal", sig.String()).Info("received termination signal, shutting down")
		e.Stop()
	}()
}

// onListenerMessage is the broker.Client handler bound to the input
// queue (spec §4.6 "Delivery path").
func (e *Engine) onListenerMessage(d broker.Delivery) {
	defer d.Ack()

	rec, err := job.ParseListener(d.Body, e.cfg.PreviousService())
	if err != nil {
		mqlog.Logger.WithError(err).Error("dropping malformed listener message")
		return
	}

	e.mu.Lock()
	_, known := e.jobs[rec.ID()]
	e.mu.Unlock()

	if known {
		mqlog.Logger.WithField("job_id", rec.ID()).Warn("duplicate listener message for job already known")
		return
	}

	e.ingest(rec)
}

// ingest inserts rec into the in-memory table and job store, then
// either schedules it (upstream SUCCESS) or cleans it up without
// running a plugin (upstream failure). Used both for fresh deliveries
// and crash recovery, relying on the id-presence check above for
// idempotence.
func (e *Engine) ingest(rec *job.Record) {
	e.mu.Lock()
	e.jobs[rec.ID()] = rec
	e.mu.Unlock()

	if err := e.jobStore.Persist(rec); err != nil {
		mqlog.Logger.WithField("job_id", rec.ID()).WithError(err).Warn("failed to persist job")
	}

	if rec.Status() == job.StatusSuccess {
		if err := e.scheduler.Submit(rec.ID(), func() error {
			return e.runPlugin(rec.ID())
		}); err != nil {
			mqlog.Logger.WithField("job_id", rec.ID()).WithError(err).Warn("job already running")
		}
		return
	}

	e.cleanupUpstreamFailure(rec.ID())
}

// runPlugin resolves and runs the plugin for id, as the scheduler's
// invocation (spec §4.6 "Scheduling path").
func (e *Engine) runPlugin(id string) error {
	e.mu.Lock()
	rec := e.jobs[id]
	e.mu.Unlock()
	if rec == nil {
		return nil
	}

	desc, err := e.jobFactory.CreateJob(rec)
	if err != nil {
		rec.SetStatus(job.StatusException)
		rec.AppendError(err.Error())
		mqlog.Logger.WithField("job_id", id).WithError(err).Error("plugin resolution failed")
		return nil
	}

	logger := mqlog.NewJobLogger(e.serviceName, id)
	return desc.RunTask(rec, logger)
}

// pumpEvents drains the scheduler's event stream, dispatching to the
// matching outcome handler (spec §4.6 "Outcome handling"/"Missed
// handling"). Runs until the scheduler closes its event channel on
// Shutdown.
func (e *Engine) pumpEvents() {
	for ev := range e.scheduler.Events() {
		switch ev.Outcome {
		case scheduler.Executed:
			e.onExecuted(ev.JobID)
		case scheduler.Error:
			e.onError(ev.JobID, ev.Err)
		case scheduler.Missed:
			mqlog.Logger.WithField("job_id", ev.JobID).Warn("scheduler reported a missed run")
		}
	}
}

// onExecuted handles a run that returned without error: the record's
// own status (set by the plugin, or EXCEPTION from a resolution
// failure) determines the log level, then the result is published.
func (e *Engine) onExecuted(id string) {
	rec := e.complete(id)
	if rec == nil {
		return
	}

	if rec.Status() == job.StatusSuccess {
		mqlog.Logger.WithField("job_id", id).Info("job completed")
	} else {
		mqlog.Logger.WithField("job_id", id).Error("plugin reported failure without raising")
	}

	e.publishResult(rec)
}

// onError handles a run whose plugin raised: the record is marked
// EXCEPTION regardless of whatever it last carried.
func (e *Engine) onError(id string, runErr error) {
	rec := e.complete(id)
	if rec == nil {
		return
	}

	rec.SetStatus(job.StatusException)
	rec.AppendError("%v", runErr)
	mqlog.Logger.WithField("job_id", id).WithError(runErr).Error("plugin raised")

	e.publishResult(rec)
}

// cleanupUpstreamFailure propagates a non-SUCCESS status from the
// previous stage downstream without invoking a plugin.
func (e *Engine) cleanupUpstreamFailure(id string) {
	rec := e.complete(id)
	if rec == nil {
		return
	}

	mqlog.Logger.WithField("job_id", id).Warn("failed upstream")
	e.publishResult(rec)
}

// complete removes id from the in-memory table and job store —
// delete-before-publish, so a crash after this point but before the
// publish below does not cause the job to re-run on restart — and
// returns the record for the caller to finish processing.
func (e *Engine) complete(id string) *job.Record {
	e.mu.Lock()
	rec := e.jobs[id]
	delete(e.jobs, id)
	e.mu.Unlock()

	if rec == nil {
		return nil
	}

	if err := e.jobStore.Remove(id); err != nil {
		mqlog.Logger.WithField("job_id", id).WithError(err).Warn("failed to remove job file")
	}
	return rec
}

// publishResult builds and publishes the outbound result envelope.
// Publish failure is logged at warning, never fatal (spec §4.1/§7):
// the job is already complete locally.
func (e *Engine) publishResult(rec *job.Record) {
	body, err := job.BuildResult(e.serviceName, rec)
	if err != nil {
		mqlog.Logger.WithField("job_id", rec.ID()).WithError(err).Error("failed to build result envelope")
		return
	}

	if err := e.broker.Publish(e.serviceName, broker.ListenerRoutingKey(), body); err != nil {
		mqlog.Logger.WithField("job_id", rec.ID()).WithError(err).Warn("failed to publish result")
	}
}

// Stop requests a graceful shutdown: the scheduler drains in-flight
// workers, then the broker connection is closed. Safe to call more
// than once, and safe to call from a signal handler concurrently with
// Start's own goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.scheduler != nil {
			e.scheduler.Shutdown(true)
		}
		e.broker.StopConsuming()
		if err := e.broker.Close(); err != nil {
			mqlog.Logger.WithError(err).Warn("error closing broker connection")
		}
		if e.cancel != nil {
			e.cancel()
		}
	})
}
