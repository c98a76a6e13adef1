package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/hermes-backend/internal/filter"
	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
	"github.com/yungbote/hermes-backend/internal/types"
)

type fakeSessionSweeper struct {
	calls   atomic.Int64
	outcome services.SweepOutcome
	err     error
}

func (f *fakeSessionSweeper) Materialize(context.Context, string, string, []grading.GradedCreator, int64) (*types.SearchSession, error) {
	return nil, nil
}

func (f *fakeSessionSweeper) FindValidSession(context.Context, string, string) (*types.SearchSession, error) {
	return nil, nil
}

func (f *fakeSessionSweeper) Paginate(context.Context, uuid.UUID, int, int, types.SortKey) (services.SessionPage, error) {
	return services.SessionPage{}, nil
}

func (f *fakeSessionSweeper) PaginateFiltered(context.Context, uuid.UUID, int, int, types.SortKey, filter.Criteria) (services.SessionPage, error) {
	return services.SessionPage{}, nil
}

func (f *fakeSessionSweeper) SweepExpired(context.Context) (services.SweepOutcome, error) {
	f.calls.Add(1)
	return f.outcome, f.err
}

func (f *fakeSessionSweeper) Stats(context.Context) services.SessionStats {
	return services.SessionStats{}
}

type fakeCacheSweeper struct {
	calls atomic.Int64
	swept int64
	err   error
}

func (f *fakeCacheSweeper) Get(context.Context, string) (services.CachedExpansion, bool) {
	return services.CachedExpansion{}, false
}

func (f *fakeCacheSweeper) Put(context.Context, string, []string, int) {}

func (f *fakeCacheSweeper) Stats(context.Context) services.QueryCacheStats {
	return services.QueryCacheStats{}
}

func (f *fakeCacheSweeper) SweepExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.swept, f.err
}

type fakeVectorSweeper struct {
	calls atomic.Int64
	swept int64
}

func (f *fakeVectorSweeper) SimilarCreators(context.Context, string, string, int) ([]services.VectorScoredCreator, error) {
	return nil, nil
}

func (f *fakeVectorSweeper) QueryEmbedding(context.Context, string) ([]float64, bool) {
	return nil, false
}

func (f *fakeVectorSweeper) SweepExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.swept, nil
}

func TestSweepRunsAllThree(t *testing.T) {
	sessions := &fakeSessionSweeper{outcome: services.SweepOutcome{SessionsDeleted: 2, ResultsDeleted: 31}}
	cache := &fakeCacheSweeper{swept: 4}
	vectors := &fakeVectorSweeper{swept: 1}
	s := NewSweeper(sessions, cache, vectors, time.Minute, logger.NewNop())

	s.sweep(context.Background())

	if sessions.calls.Load() != 1 || cache.calls.Load() != 1 || vectors.calls.Load() != 1 {
		t.Fatalf("expected one call each, got %d/%d/%d",
			sessions.calls.Load(), cache.calls.Load(), vectors.calls.Load())
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	sessions := &fakeSessionSweeper{err: errors.New("lock timeout")}
	cache := &fakeCacheSweeper{err: errors.New("lock timeout")}
	vectors := &fakeVectorSweeper{}
	s := NewSweeper(sessions, cache, vectors, time.Minute, logger.NewNop())

	s.sweep(context.Background())

	// A failing sweep must not stop the later ones.
	if vectors.calls.Load() != 1 {
		t.Fatalf("embedding sweep skipped after earlier failures: %d", vectors.calls.Load())
	}
}

func TestStartTicksUntilCancelled(t *testing.T) {
	sessions := &fakeSessionSweeper{}
	cache := &fakeCacheSweeper{}
	vectors := &fakeVectorSweeper{}
	s := NewSweeper(sessions, cache, vectors, 5*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for sessions.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never ticked twice: %d", sessions.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	// After cancel the loop exits; counts settle.
	time.Sleep(20 * time.Millisecond)
	settled := sessions.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if sessions.calls.Load() != settled {
		t.Fatalf("sweeper kept ticking after cancel: %d -> %d", settled, sessions.calls.Load())
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	s := NewSweeper(&fakeSessionSweeper{}, &fakeCacheSweeper{}, &fakeVectorSweeper{}, 0, logger.NewNop())
	if s.interval != defaultSweepInterval {
		t.Fatalf("expected default interval, got %s", s.interval)
	}
}
