// Package gojob runs credential refreshes as go-job queue work.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDRefresh      = "integrations.credentials.refresh"
	ScriptPathRefresh = "integrations/credentials/refresh"

	paramProvider    = "provider"
	paramSubject     = "subject"
	paramMaxAttempts = "max_attempts"

	// DedupDrop collapses refreshes queued for the same provider and subject.
	DedupDrop job.DeduplicationPolicy = "drop"
)

// RefreshJob asks a worker to refresh the stored credentials of Subject for
// Provider.
type RefreshJob struct {
	Provider    string
	Subject     core.Subject
	MaxAttempts int
}

// ToExecutionMessage encodes j for the queue. The idempotency key is the
// refresh lock key, so one pending refresh exists per provider and subject.
func ToExecutionMessage(j RefreshJob) (*job.ExecutionMessage, error) {
	provider := core.NormalizeName(j.Provider)
	if provider == "" {
		return nil, core.BadInputError("refresh job provider is required")
	}
	subjectKey, err := j.Subject.Key()
	if err != nil {
		return nil, err
	}
	params := map[string]any{paramProvider: provider}
	if j.Subject.IsMapping() {
		params[paramSubject] = j.Subject.Attrs()
	} else {
		params[paramSubject] = subjectKey
	}
	if j.MaxAttempts > 0 {
		params[paramMaxAttempts] = j.MaxAttempts
	}
	return &job.ExecutionMessage{
		JobID:          JobIDRefresh,
		ScriptPath:     ScriptPathRefresh,
		Parameters:     params,
		IdempotencyKey: core.RefreshLockKey(core.ServiceKey(provider), subjectKey),
		DedupPolicy:    DedupDrop,
	}, nil
}

// FromExecutionMessage decodes a refresh job. Parameters may have gone
// through JSON, so numbers arrive as float64 and mappings as map[string]any.
func FromExecutionMessage(msg *job.ExecutionMessage) (RefreshJob, error) {
	if msg == nil {
		return RefreshJob{}, core.BadInputError("execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDRefresh {
		return RefreshJob{}, core.BadInputError(fmt.Sprintf("unexpected job id %q", msg.JobID))
	}
	provider, _ := msg.Parameters[paramProvider].(string)
	if strings.TrimSpace(provider) == "" {
		return RefreshJob{}, core.BadInputError("refresh job provider is required")
	}
	subject, err := core.SubjectFrom(msg.Parameters[paramSubject])
	if err != nil {
		return RefreshJob{}, err
	}
	if _, err := subject.Key(); err != nil {
		return RefreshJob{}, err
	}
	out := RefreshJob{Provider: provider, Subject: subject}
	switch n := msg.Parameters[paramMaxAttempts].(type) {
	case int:
		out.MaxAttempts = n
	case int64:
		out.MaxAttempts = int(n)
	case float64:
		out.MaxAttempts = int(n)
	}
	return out, nil
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	LockedDelay     time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return p.BaseDelay
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

type RefreshEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewRefreshEnqueuer(enqueuer queue.Enqueuer) *RefreshEnqueuer {
	return &RefreshEnqueuer{enqueuer: enqueuer}
}

func (e *RefreshEnqueuer) Enqueue(ctx context.Context, j RefreshJob) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(j)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

// Refresher is the subset of *core.Manager a refresh worker needs.
type Refresher interface {
	RunRefreshWithRetry(ctx context.Context, name string, subject core.Subject, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
}

type RefreshProcessor struct {
	refresher Refresher
	policy    RetryPolicy
	hook      worker.Hook
	now       func() time.Time
}

type ProcessorOption func(*RefreshProcessor)

func WithWorkerHook(hook worker.Hook) ProcessorOption {
	return func(p *RefreshProcessor) {
		p.hook = hook
	}
}

func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *RefreshProcessor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewRefreshProcessor(refresher Refresher, policy RetryPolicy, opts ...ProcessorOption) *RefreshProcessor {
	processor := &RefreshProcessor{
		refresher: refresher,
		policy:    policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(processor)
		}
	}
	return processor
}

// ProcessNext dequeues one delivery and processes it as the given attempt.
func (p *RefreshProcessor) ProcessNext(ctx context.Context, dequeuer queue.Dequeuer, attempt int) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return p.Process(ctx, delivery, attempt)
}

// Process runs one refresh delivery. Malformed jobs and refreshes that need
// re-authorization go to the dead letter queue; a held refresh lock requeues
// after LockedDelay; other failures requeue with exponential delay until
// MaxAttempts.
func (p *RefreshProcessor) Process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if p == nil || p.refresher == nil {
		return fmt.Errorf("gojob: refresher is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	startedAt := p.now().UTC()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}

	refreshJob, err := FromExecutionMessage(msg)
	if err != nil {
		event.Err = err
		p.onFailure(ctx, event)
		return delivery.Nack(ctx, p.policy.NormalizeAttempt(queue.NackOptions{
			DeadLetter: true,
			Reason:     "invalid refresh job: " + err.Error(),
		}, attempt))
	}

	p.onStart(ctx, event)
	result, err := p.refresher.RunRefreshWithRetry(ctx, refreshJob.Provider, refreshJob.Subject, core.RefreshRunOptions{
		MaxAttempts: refreshJob.MaxAttempts,
	})
	event.Duration = p.now().UTC().Sub(startedAt)
	if err == nil {
		p.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = err
	nack := queue.NackOptions{Requeue: true, Reason: err.Error()}
	switch {
	case result.Reauthorize:
		nack = queue.NackOptions{DeadLetter: true, Reason: "reauthorization required: " + err.Error()}
	case core.IsRefreshLocked(err):
		nack.Delay = p.policy.LockedDelay
	default:
		nack.Delay = p.policy.delayFor(attempt)
	}
	nack = p.policy.NormalizeAttempt(nack, attempt)
	event.Delay = nack.Delay
	if nack.Requeue {
		p.onRetry(ctx, event)
	} else {
		p.onFailure(ctx, event)
	}
	return delivery.Nack(ctx, nack)
}

func (p *RefreshProcessor) onStart(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnStart(ctx, event)
	}
}

func (p *RefreshProcessor) onSuccess(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnSuccess(ctx, event)
	}
}

func (p *RefreshProcessor) onFailure(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnFailure(ctx, event)
	}
}

func (p *RefreshProcessor) onRetry(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnRetry(ctx, event)
	}
}

var _ Refresher = (*core.Manager)(nil)
