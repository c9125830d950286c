package service

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// mockTx records how the service finished the transaction. Only Commit and
// Rollback are usable; repositories are mocked and never touch it.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.committed || m.rolledBack {
		return pgx.ErrTxClosed
	}
	m.committed = true
	return nil
}

// Rollback after Commit is the deferred cleanup path and is a no-op.
func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}
