package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileColumnNames() []string {
	return []string{"id", "name", "email", "subaccount_code", "pickup_address", "shipping_address", "is_admin"}
}

func TestProfileRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProfileRepo(mock)
	id := uuid.New()
	pickup, err := json.Marshal(domain.Address{Street: "5 Dorp St", City: "Stellenbosch", Province: "Western Cape", PostalCode: "7600"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .+ FROM profiles WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(profileColumnNames()).
			AddRow(id, "Sipho", "sipho@example.co.za", strPtr("ACCT_x1"), pickup, []byte(nil), false))

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HasSubaccount())
	require.NotNil(t, got.PickupAddress)
	assert.Equal(t, "Stellenbosch", got.PickupAddress.City)
	assert.Nil(t, got.ShippingAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProfileRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM profiles").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(profileColumnNames()))

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfileRepo_GetByIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProfileRepo(mock)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .+ FROM profiles WHERE id = ANY").
		WithArgs([]uuid.UUID{a, b}).
		WillReturnRows(pgxmock.NewRows(profileColumnNames()).
			AddRow(a, "Sipho", "sipho@example.co.za", strPtr("ACCT_x1"), []byte(nil), []byte(nil), false).
			AddRow(b, "Admin", "ops@rebooked.co.za", (*string)(nil), []byte(nil), []byte(nil), true))

	got, err := repo.GetByIDs(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].HasSubaccount())
	assert.True(t, got[1].IsAdmin)
}

func TestProfileRepo_ListIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProfileRepo(mock)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT id FROM profiles").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	got, err := repo.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
