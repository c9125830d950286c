// Package cron runs the order sweeps with one run per job at a time across
// every instance.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rebooked-marketplace/pkg/metrics"

	"github.com/rs/zerolog"
)

// ErrJobRunning is returned when another run of the job holds its lock.
var ErrJobRunning = errors.New("job already running")

// Lock coordinates exclusive job runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns a fresh lock for the named job.
type LockFactory func(job string) (Lock, error)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   zerolog.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.SweepMetrics
}

// Service executes registered jobs under their locks.
type Service struct {
	log      zerolog.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.SweepMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		log:      params.Logger.With().Str("component", "cron").Logger(),
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}, nil
}

// RunAll runs every registered job once. A failing or locked job does not
// stop the others.
func (s *Service) RunAll(ctx context.Context) {
	s.log.Info().Msg("scheduled run starting")
	for _, job := range s.registry.Jobs() {
		if err := s.Exclusive(ctx, job.Name(), job.Run); err != nil && !errors.Is(err, ErrJobRunning) {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
		}
	}
	s.log.Info().Msg("scheduled run complete")
}

// Run runs the named registered job.
func (s *Service) Run(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.Exclusive(ctx, name, job.Run)
}

// Exclusive runs fn while holding the lock for name and records the
// outcome. It returns ErrJobRunning without calling fn when the lock is
// taken.
func (s *Service) Exclusive(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lock, err := s.locks(name)
	if err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire %s: %w", name, err)
	}
	if !locked {
		s.log.Info().Str("job", name).Msg("another run holds the lock, skipping")
		s.metrics.IncSkipped(name)
		return ErrJobRunning
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.log.Error().Err(relErr).Str("job", name).Msg("failed to release job lock")
		}
	}()

	log := s.log.With().Str("job", name).Str("event", "cron.job").Logger()
	log.Info().Msg("job start")
	start := time.Now()
	err = fn(log.WithContext(ctx))
	duration := time.Since(start)
	s.metrics.ObserveDuration(name, duration)

	if err != nil {
		log.Error().Err(err).Int64("duration_ms", duration.Milliseconds()).Msg("job finished with errors")
		s.metrics.IncFailure(name)
		return err
	}
	log.Info().Int64("duration_ms", duration.Milliseconds()).Msg("job completed")
	s.metrics.IncSuccess(name)
	return nil
}
