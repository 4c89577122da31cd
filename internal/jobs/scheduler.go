package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/config"
	"github.com/fibratrack/fibratrack-backend/internal/model"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// recalcRequest is one queued portfolio recalculation.
type recalcRequest struct {
	UserID      string
	Reason      model.RecalcReason
	RequestedAt time.Time
	Attempt     int
}

// Runner owns the in-process recalculation queue and the nightly
// reconciliation schedule. It implements the service.JobScheduler interface.
// Failed recalculations are retried with linear backoff up to MaxAttempts;
// the terminal failure is already captured as a dead letter by the
// recalculation routine itself.
type Runner struct {
	queue       chan recalcRequest
	recalc      *service.RecalcService
	reconcile   *service.ReconcileService
	cron        *cron.Cron
	cronSpec    string
	maxAttempts int
}

// NewRunner creates a Runner with a bounded queue sized from the config.
// The reconciler is attached separately because it enqueues through the
// Runner itself.
func NewRunner(cfg config.SchedulerConfig, recalc *service.RecalcService) *Runner {
	return &Runner{
		queue:       make(chan recalcRequest, cfg.QueueSize),
		recalc:      recalc,
		cron:        cron.New(cron.WithSeconds()),
		cronSpec:    cfg.ReconcileCron,
		maxAttempts: cfg.MaxAttempts,
	}
}

// SetReconcileService attaches the reconciler run by the nightly schedule.
// Must be called before Run.
func (r *Runner) SetReconcileService(reconcile *service.ReconcileService) {
	r.reconcile = reconcile
}

// EnqueuePortfolioRecalc queues one recalculation without blocking. Returns
// apperrors.ErrQueueFull when the queue is at capacity; the caller decides
// whether that is fatal.
func (r *Runner) EnqueuePortfolioRecalc(userID string, reason model.RecalcReason, requestedAt time.Time) error {
	req := recalcRequest{UserID: userID, Reason: reason, RequestedAt: requestedAt, Attempt: 1}
	select {
	case r.queue <- req:
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// Run starts the nightly reconciliation schedule and processes the
// recalculation queue until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.cronSpec, func() {
		summary, err := r.reconcile.Reconcile(ctx)
		if err != nil {
			log.Printf("scheduled reconciliation failed: %v", err)
			return
		}
		log.Printf("scheduled reconciliation: imported=%d verified=%d ignored=%d split=%d failed=%d",
			summary.Imported, summary.Verified, summary.Ignored, summary.Split, len(summary.FailedTickers))
	}); err != nil {
		return err
	}

	r.cron.Start()
	defer r.cron.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.queue:
			r.process(ctx, req)
		}
	}
}

// process executes one queued recalculation and re-queues it with backoff if
// it failed and attempts remain.
func (r *Runner) process(ctx context.Context, req recalcRequest) {
	outcome, err := r.recalc.Execute(ctx, req.UserID, req.Reason, req.RequestedAt)
	if err == nil {
		return
	}
	log.Printf("recalculation for user %s (%s, attempt %d/%d) ended %s: %v",
		req.UserID, req.Reason, req.Attempt, r.maxAttempts, outcome, err)

	if req.Attempt >= r.maxAttempts {
		return
	}

	backoff := time.Duration(req.Attempt) * time.Second
	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	req.Attempt++
	select {
	case r.queue <- req:
	default:
		log.Printf("recalculation queue full, dropping retry for user %s (%s)", req.UserID, req.Reason)
	}
}
