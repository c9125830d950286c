package postgres

import (
	"context"
	"errors"
	"fmt"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, name, email, subaccount_code, pickup_address, shipping_address, is_admin`

// ProfileRepo implements ports.ProfileRepository.
type ProfileRepo struct {
	pool Pool
}

func NewProfileRepo(pool Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return profiles, nil
}

// ListIDs returns every profile id, used as the audience of a broadcast.
func (r *ProfileRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile ids: %w", err)
	}
	return ids, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var pickup, shipping []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.SubaccountCode, &pickup, &shipping, &p.IsAdmin); err != nil {
		return nil, err
	}
	var err error
	if p.PickupAddress, err = decodeAddress(pickup); err != nil {
		return nil, fmt.Errorf("decode pickup address: %w", err)
	}
	if p.ShippingAddress, err = decodeAddress(shipping); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	return &p, nil
}
