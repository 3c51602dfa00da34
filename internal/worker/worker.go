package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/queue"
)

// Reconciler recomputes a camp's participant_count. *camps.Registry implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, campID string) (int64, error)
}

// JobQueue is the part of *queue.Queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ReconcileProcessor processes counter reconciliation jobs queued when a registration delete could
// not bring its camp's counter back in line.
type ReconcileProcessor struct {
	camps   Reconciler
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewReconcileProcessor creates a reconciliation processor.
func NewReconcileProcessor(camps Reconciler, q JobQueue, logger *zap.Logger) *ReconcileProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileProcessor{camps: camps, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one reconcile job. A camp that no longer exists has nothing to reconcile.
func (p *ReconcileProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReconcileCamp {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReconcilePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.CampID == "" {
		return fmt.Errorf("job %s has no camp id", job.ID)
	}

	n, err := p.camps.Reconcile(ctx, payload.CampID)
	if apperr.Is(err, apperr.KindNotFound) {
		p.logger.Info("reconcile skipped, camp gone", zap.String("camp_id", payload.CampID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile camp %s: %w", payload.CampID, err)
	}
	p.logger.Info("camp counter reconciled",
		zap.String("camp_id", payload.CampID),
		zap.String("registration_id", payload.RegistrationID),
		zap.String("reason", payload.Reason),
		zap.Int64("participant_count", n))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *ReconcileProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("reconcile worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ReconcileProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
