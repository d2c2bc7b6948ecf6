// README: Order store backed by PostgreSQL (orders, lines and state events).
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fulfillments/internal/types"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db dbtx
}

func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

const orderColumns = `
    o.id, o.code, o.channel_id, o.state, o.state_version,
    o.is_delivery, o.delivery_collection_date, o.time_slot, o.order_note,
    o.reschedule_reason, o.review, o.google_place_id,
    o.total_with_tax, o.currency_code, o.order_placed_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+`
        FROM orders o
        WHERE o.id = $1`, string(id),
	)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get order", err)
	}
	lines, err := s.linesFor(ctx, []*Order{o})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

// Find returns the channel's orders matching f, ordered by id.
func (s *Store) Find(ctx context.Context, channelID types.ID, f Filter) ([]Order, error) {
	if channelID == "" {
		return nil, ErrBadRequest
	}
	return s.find(ctx, channelID, f)
}

// FindAcrossChannels is Find without channel scoping, for maintenance jobs.
func (s *Store) FindAcrossChannels(ctx context.Context, f Filter) ([]Order, error) {
	return s.find(ctx, "", f)
}

func (s *Store) find(ctx context.Context, channelID types.ID, f Filter) ([]Order, error) {
	query, args := buildFindQuery(channelID, f)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("find orders", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storeErr("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find orders", err)
	}

	if f.WithLines && len(out) > 0 {
		lines, err := s.linesFor(ctx, out)
		if err != nil {
			return nil, err
		}
		for _, o := range out {
			o.Lines = lines[o.ID]
		}
	}

	res := make([]Order, len(out))
	for i, o := range out {
		res[i] = *o
	}
	return res, nil
}

// buildFindQuery renders f as a parameterised WHERE clause.
func buildFindQuery(channelID types.ID, f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if channelID != "" {
		where = append(where, "o.channel_id = "+arg(string(channelID)))
	}
	if len(f.States) > 0 {
		where = append(where, "o.state = ANY("+arg(stateStrings(f.States))+")")
	}
	if len(f.Excluded) > 0 {
		where = append(where, "NOT (o.state = ANY("+arg(stateStrings(f.Excluded))+"))")
	}
	if f.IsDelivery != nil {
		where = append(where, "o.is_delivery = "+arg(*f.IsDelivery))
	}
	if !f.Window.Start.IsZero() {
		op := ">="
		if f.Window.OpenStart {
			op = ">"
		}
		where = append(where, "o.delivery_collection_date "+op+" "+arg(f.Window.Start))
	}
	if !f.Window.End.IsZero() {
		where = append(where, "o.delivery_collection_date <= "+arg(f.Window.End))
	}

	q := "SELECT" + orderColumns + "\n        FROM orders o"
	if len(where) > 0 {
		q += "\n        WHERE " + strings.Join(where, "\n          AND ")
	}
	q += "\n        ORDER BY o.id"
	return q, args
}

func (s *Store) linesFor(ctx context.Context, orders []*Order) (map[types.ID][]Line, error) {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = string(o.ID)
	}
	rows, err := s.db.Query(ctx, `
        SELECT order_id, id, product_name, quantity, COALESCE(substitution_state, '')
        FROM order_lines
        WHERE order_id = ANY($1)
        ORDER BY order_id, id`, ids,
	)
	if err != nil {
		return nil, storeErr("load order lines", err)
	}
	defer rows.Close()

	out := make(map[types.ID][]Line, len(orders))
	for rows.Next() {
		var orderID types.ID
		var l Line
		if err := rows.Scan(&orderID, &l.ID, &l.ProductName, &l.Quantity, &l.SubstitutionState); err != nil {
			return nil, storeErr("scan order line", err)
		}
		out[orderID] = append(out[orderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load order lines", err)
	}
	return out, nil
}

// UpdateState moves the order from -> to if nobody changed it since version
// was read. It reports false when the compare-and-swap lost.
func (s *Store) UpdateState(ctx context.Context, id types.ID, from, to State, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET state = $1,
            state_version = state_version + 1
        WHERE id = $2 AND state = $3 AND state_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, storeErr("update order state", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_state_events (
            id, order_id, channel_id, from_state, to_state, actor_type, reason, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID,
		string(e.OrderID),
		string(e.ChannelID),
		string(e.FromState),
		string(e.ToState),
		e.ActorType,
		e.Reason,
		e.CreatedAt,
	)
	if err != nil {
		return storeErr("append order event", err)
	}
	return nil
}

// InTx runs fn against a store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Repository) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var date, placedAt sql.NullTime
	var timeSlot, note, reason, placeID, currency sql.NullString
	var review sql.NullInt32
	var total sql.NullInt64

	err := row.Scan(
		&o.ID, &o.Code, &o.ChannelID, &o.State, &o.StateVersion,
		&o.IsDelivery, &date, &timeSlot, &note,
		&reason, &review, &placeID,
		&total, &currency, &placedAt,
	)
	if err != nil {
		return nil, err
	}
	if date.Valid {
		o.DeliveryOrCollectionDate = date.Time
	}
	o.TimeSlot = timeSlot.String
	o.OrderNote = note.String
	o.RescheduleReason = reason.String
	o.GooglePlaceID = placeID.String
	if review.Valid {
		r := int(review.Int32)
		o.Review = &r
	}
	o.TotalWithTax = types.Money{Amount: total.Int64, Currency: currency.String}
	o.OrderPlacedAt = toTimePtr(placedAt)
	return &o, nil
}

func stateStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
