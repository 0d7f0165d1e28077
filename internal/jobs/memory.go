package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/evetools/slacksync/internal/ids"
)

// MemoryTracking is an in-process TrackingStore enforcing the single-flight
// constraint the Postgres store enforces with a partial unique index.
type MemoryTracking struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryTracking returns an empty store.
func NewMemoryTracking() *MemoryTracking {
	return &MemoryTracking{records: make(map[string]Record)}
}

func (s *MemoryTracking) FindActive(_ context.Context, ownerID int64, apiScope string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActiveLocked(ownerID, apiScope)
}

func (s *MemoryTracking) findActiveLocked(ownerID int64, apiScope string) (Record, bool, error) {
	for _, record := range s.records {
		if record.OwnerID == ownerID && record.APIScope == apiScope && !record.Status.Terminal() {
			return record, true, nil
		}
	}
	return Record{}, false, nil
}

func (s *MemoryTracking) Create(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, active, _ := s.findActiveLocked(record.OwnerID, record.APIScope); active {
		return ErrConflict
	}
	s.records[record.JobID] = record
	return nil
}

func (s *MemoryTracking) SetStatus(_ context.Context, jobID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobID]
	if !ok {
		return ErrUnknownJob
	}
	record.Status = status
	s.records[jobID] = record
	return nil
}

// Find returns a tracked record. Tests use it.
func (s *MemoryTracking) Find(jobID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobID]
	return record, ok
}

// Len reports how many records exist, terminal ones included.
func (s *MemoryTracking) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// InProcBackend runs submitted tasks in a goroutine after the scheduling
// delay, transitioning the tracked record through Working to Done or
// Failed. The queue never touches the status itself.
type InProcBackend struct {
	tracking TrackingStore
	wg       sync.WaitGroup
}

// NewInProcBackend wires a backend against the shared tracking store.
func NewInProcBackend(tracking TrackingStore) *InProcBackend {
	return &InProcBackend{tracking: tracking}
}

func (b *InProcBackend) Submit(ctx context.Context, spec Spec, delay time.Duration) (string, error) {
	jobID := ids.New()
	// Jobs outlive the submitting request; only values carry over.
	runCtx := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		time.Sleep(delay)
		_ = b.tracking.SetStatus(runCtx, jobID, StatusWorking)
		status := StatusDone
		if spec.Task != nil {
			if err := spec.Task(runCtx); err != nil {
				status = StatusFailed
			}
		}
		_ = b.tracking.SetStatus(runCtx, jobID, status)
	}()
	return jobID, nil
}

// Wait blocks until every submitted task finished. Shutdown and tests use
// it.
func (b *InProcBackend) Wait() {
	b.wg.Wait()
}
