package postgres

import (
	"context"
	"errors"
)

// errSchemaMissing means the database answers but migrations never ran.
var errSchemaMissing = errors.New("orders table missing, run migrations")

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks connectivity and that the schema is in place.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var migrated bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.orders') IS NOT NULL`).Scan(&migrated); err != nil {
		return err
	}
	if !migrated {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
