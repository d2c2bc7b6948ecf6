// README: Channel store backed by PostgreSQL.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Channel, error) {
	var c Channel
	err := s.db.QueryRow(ctx, `
        SELECT id, code,
               COALESCE(google_place_id, ''), COALESCE(address, ''), COALESCE(phone, ''),
               COALESCE(hours, ''), COALESCE(latitude, ''), COALESCE(longitude, '')
        FROM channels
        WHERE id = $1`, string(id),
	).Scan(&c.ID, &c.Code, &c.GooglePlaceID, &c.Address, &c.Phone, &c.Hours, &c.Latitude, &c.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get channel: %w", order.ErrStoreUnavailable, err)
	}
	return &c, nil
}

// IDs lists every channel id, for jobs that walk all channels.
func (s *Store) IDs(ctx context.Context) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list channels: %w", order.ErrStoreUnavailable, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[types.ID])
	if err != nil {
		return nil, fmt.Errorf("%w: list channels: %w", order.ErrStoreUnavailable, err)
	}
	return ids, nil
}
