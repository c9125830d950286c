package cron

import (
	"context"
	"errors"
	"testing"

	"rebooked-marketplace/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	held     map[string]bool
	name     string
	failWith error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	if f.held[f.name] {
		return false, nil
	}
	f.held[f.name] = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	delete(f.held, f.name)
	return nil
}

func fakeLocks(held map[string]bool) LockFactory {
	return func(job string) (Lock, error) {
		return &fakeLock{held: held, name: job}, nil
	}
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, locks LockFactory, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:   zerolog.Nop(),
		Registry: NewRegistry(jobs...),
		Locks:    locks,
		Metrics:  metrics.NewSweepMetrics(reg),
	})
	require.NoError(t, err)
	return svc, reg
}

func TestNewService_RequiresLocks(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestService_RunAllRunsEveryJobEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	held := map[string]bool{}
	svc, _ := newTestService(t, fakeLocks(held), ok, bad)

	svc.RunAll(context.Background())

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
	assert.Empty(t, held, "locks are released after each job")
}

func TestService_ExclusiveSkipsWhenLocked(t *testing.T) {
	held := map[string]bool{JobAutoExpire: true}
	svc, reg := newTestService(t, fakeLocks(held))

	called := false
	err := svc.Exclusive(context.Background(), JobAutoExpire, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.False(t, called)

	count, err := testutil.GatherAndCount(reg, "rebooked_sweep_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_ExclusiveReturnsJobError(t *testing.T) {
	svc, _ := newTestService(t, fakeLocks(map[string]bool{}))

	boom := errors.New("boom")
	err := svc.Exclusive(context.Background(), "x", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestService_ExclusiveLockError(t *testing.T) {
	locks := func(job string) (Lock, error) {
		return &fakeLock{held: map[string]bool{}, name: job, failWith: errors.New("redis down")}, nil
	}
	svc, _ := newTestService(t, locks)

	err := svc.Exclusive(context.Background(), "x", func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "lock acquire x")
}

func TestService_RunByName(t *testing.T) {
	job := &testJob{name: JobCheckExpiredOrders}
	svc, _ := newTestService(t, fakeLocks(map[string]bool{}), job)

	require.NoError(t, svc.Run(context.Background(), JobCheckExpiredOrders))
	assert.Equal(t, 1, job.runs)
	assert.Error(t, svc.Run(context.Background(), "nope"))
}

func TestRegistry_IgnoresNil(t *testing.T) {
	r := NewRegistry(nil, &testJob{name: "a"})
	r.Register(nil)
	assert.Len(t, r.Jobs(), 1)

	_, ok := r.Lookup("a")
	assert.True(t, ok)
}
