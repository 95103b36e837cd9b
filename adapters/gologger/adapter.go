package gologger

import (
	"context"

	"github.com/anishxyz/integrations/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ManagerOptions resolves a logger pair once and hands it to core.NewManager.
func ManagerOptions(name string, provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// WorkerHook logs refresh worker lifecycle events.
type WorkerHook struct {
	logger glog.Logger
}

func NewWorkerHook(logger glog.Logger) *WorkerHook {
	return &WorkerHook{logger: glog.Ensure(logger)}
}

func (h *WorkerHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx).Debug("refresh job started", eventArgs(event)...)
}

func (h *WorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("refresh job succeeded", eventArgs(event)...)
}

func (h *WorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx).Error("refresh job failed", eventArgs(event)...)
}

func (h *WorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx).Warn("refresh job requeued", eventArgs(event)...)
}

func (h *WorkerHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	return glog.Ensure(h.logger.WithContext(ctx))
}

func eventArgs(event worker.Event) []any {
	args := []any{"attempt", event.Attempt}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		args = append(args, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		args = append(args, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

var _ worker.Hook = (*WorkerHook)(nil)
