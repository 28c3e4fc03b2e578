package inmemory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rmachado/expense-audit/internal/jobs"
)

func newJob(id string) *jobs.JudgeBundleJob {
	return &jobs.JudgeBundleJob{
		JobID:      id,
		Strategy:   "coordination",
		MessageID:  "M1",
		MaxRetries: 1,
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	defer q.Close()

	var processed atomic.Int32
	var wg sync.WaitGroup

	ctx := context.Background()
	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		defer wg.Done()
		processed.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		if err := q.PublishJudgeBundle(ctx, newJob(fmt.Sprintf("coordination/M%d", i))); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	wg.Wait()

	if got := processed.Load(); got != 5 {
		t.Errorf("processed = %d, want 5", got)
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	attempts := make(chan int, 8)
	var finalSeen atomic.Bool

	ctx := context.Background()
	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		jb := job.(*jobs.JudgeBundleJob)
		attempts <- jb.RetryCount
		if jb.FinalAttempt() {
			finalSeen.Store(true)
		}
		return fmt.Errorf("oracle down")
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := q.PublishJudgeBundle(ctx, newJob("coordination/M1")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// MaxRetries=1 means two attempts: the original and one retry
	// (after ~1s backoff).
	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < 2 {
		select {
		case <-attempts:
			seen++
		case <-deadline:
			t.Fatalf("saw %d attempts before deadline, want 2", seen)
		}
	}

	if !finalSeen.Load() {
		t.Error("handler never observed the final attempt")
	}

	// Wait for the terminal state to land in the store.
	var status jobs.JobStatus
	for i := 0; i < 50; i++ {
		saved, err := store.GetJob(ctx, "coordination/M1")
		if err == nil {
			status = saved.Status
			if status == jobs.JobStatusFailed {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status != jobs.JobStatusFailed {
		t.Errorf("stored status = %s, want %s", status, jobs.JobStatusFailed)
	}
}

func TestQueueRequiresBundleIdentity(t *testing.T) {
	q := NewQueue(1, 1, nil)
	defer q.Close()

	job := newJob("")
	if err := q.PublishJudgeBundle(context.Background(), job); err == nil {
		t.Fatal("expected error for missing bundle identity")
	}
}

func TestQueueClosedPublish(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := q.PublishJudgeBundle(context.Background(), newJob("x/y")); err == nil {
		t.Fatal("expected error publishing to closed queue")
	}
}

func TestStoreFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	jobsToSave := []*jobs.JudgeBundleJob{
		{JobID: "coordination/M1", Strategy: "coordination", Status: jobs.JobStatusCompleted},
		{JobID: "coordination/M2", Strategy: "coordination", Status: jobs.JobStatusFailed},
		{JobID: "personal_use/M1", Strategy: "personal_use", Status: jobs.JobStatusCompleted},
	}
	for _, j := range jobsToSave {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	byStrategy, err := store.ListJobs(ctx, jobs.JobFilter{Strategy: "coordination"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byStrategy) != 2 {
		t.Errorf("strategy filter returned %d jobs, want 2", len(byStrategy))
	}

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].JobID != "coordination/M2" {
		t.Errorf("status filter returned %v", byStatus)
	}
}
