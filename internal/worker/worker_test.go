package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcamp-hub/backend/internal/camps"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
	"github.com/medcamp-hub/backend/pkg/queue"
)

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Retry(ctx context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

type reconcileFunc func(ctx context.Context, id string) (int64, error)

func (f reconcileFunc) Reconcile(ctx context.Context, id string) (int64, error) { return f(ctx, id) }

func reconcileJob(t *testing.T, campID string) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(queue.ReconcilePayload{CampID: campID, Reason: "decrement failed"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-" + campID, Type: queue.JobTypeReconcileCamp, Payload: raw}
}

func TestProcessReconcilesCounter(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(models.UniqueKeys...)
	registry := camps.NewRegistry(store)
	camp := &models.Camp{Title: "Health Camp", Date: "2024-01-01", Time: "10:00", Images: []string{"x.png"}}
	require.NoError(t, registry.Create(ctx, camp))
	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := store.InsertOne(ctx, models.CollectionRegistrations, docstore.Document{"campId": camp.ID, "participantEmail": email})
		require.NoError(t, err)
	}

	p := NewReconcileProcessor(registry, &fakeQueue{}, nil)
	require.NoError(t, p.Process(ctx, reconcileJob(t, camp.ID)))

	got, err := registry.Get(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ParticipantCount)
}

func TestProcessSkipsMissingCamp(t *testing.T) {
	store := docstore.NewMemory()
	p := NewReconcileProcessor(camps.NewRegistry(store), &fakeQueue{}, nil)
	assert.NoError(t, p.Process(context.Background(), reconcileJob(t, "gone")))
}

func TestProcessRejectsBadJobs(t *testing.T) {
	p := NewReconcileProcessor(reconcileFunc(func(context.Context, string) (int64, error) { return 0, nil }), &fakeQueue{}, nil)
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, &queue.Job{ID: "1", Type: "unknown"}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "2", Type: queue.JobTypeReconcileCamp, Payload: json.RawMessage(`{`)}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "3", Type: queue.JobTypeReconcileCamp, Payload: json.RawMessage(`{}`)}))
}

func TestRunRetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls sync.WaitGroup
	calls.Add(2)
	q := &fakeQueue{jobs: []*queue.Job{reconcileJob(t, "ok"), reconcileJob(t, "broken")}}
	p := NewReconcileProcessor(reconcileFunc(func(_ context.Context, id string) (int64, error) {
		defer calls.Done()
		if id == "broken" {
			return 0, apperr.Upstream("failed to count registrations", errors.New("timeout"))
		}
		return 3, nil
	}), q, nil)
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	calls.Wait()
	cancel()
	<-done

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.retried, 1)
	assert.Equal(t, "job-broken", q.retried[0].ID)
	assert.Equal(t, 1, q.retried[0].Attempt)
}
