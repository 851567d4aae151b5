package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cosmetica/clinic-booking/internal/slots"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"

	reservationSlotKey = "reservations_date_time_key"
	blockedDateKey     = "blocked_dates_blocked_date_key"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores reservations and blocked dates in Postgres.
type PostgresRepository struct {
	pool    PgxPool
	catalog slots.Catalog
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("reservations: pgx pool required")
	}
	return &PostgresRepository{pool: pool, catalog: slots.DefaultCatalog}
}

const reservationColumns = `id::text, preferred_date, preferred_time, name, phone,
	COALESCE(email, ''), COALESCE(service, ''), COALESCE(message, ''), follow_up_date, created_at`

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// isMalformedID reports a non-UUID id rejected by the ::uuid cast.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	if err := row.Scan(
		&r.ID,
		&r.Date,
		&r.Slot,
		&r.Name,
		&r.Phone,
		&r.Email,
		&r.Service,
		&r.Message,
		&r.FollowUpDate,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PostgresRepository) queryReservations(ctx context.Context, query string, args ...any) ([]*Reservation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reservations: select failed: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("reservations: scan failed: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservations: rows: %w", err)
	}
	return out, nil
}

// Insert writes a new reservation; the (date, slot) unique constraint is the authoritative conflict check.
func (r *PostgresRepository) Insert(ctx context.Context, in *Reservation) (*Reservation, error) {
	query := `
		INSERT INTO reservations (preferred_date, preferred_time, name, phone, email, service, message, follow_up_date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id::text, created_at
	`
	out := *in
	if err := r.pool.QueryRow(ctx, query,
		in.Date,
		in.Slot,
		in.Name,
		in.Phone,
		in.Email,
		in.Service,
		in.Message,
		in.FollowUpDate,
	).Scan(&out.ID, &out.CreatedAt); err != nil {
		if isUniqueViolation(err, reservationSlotKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("reservations: insert failed: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) ListByDate(ctx context.Context, date time.Time) ([]*Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE preferred_date = $1
		ORDER BY array_position($2::text[], preferred_time), preferred_time`
	return r.queryReservations(ctx, query, date, r.catalog.Labels())
}

func (r *PostgresRepository) ListBySlot(ctx context.Context, date time.Time, slot string) ([]*Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE preferred_date = $1 AND preferred_time = $2`
	return r.queryReservations(ctx, query, date, slot)
}

// ListThrough returns every reservation dated on or before date.
func (r *PostgresRepository) ListThrough(ctx context.Context, date time.Time) ([]*Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE preferred_date <= $1`
	return r.queryReservations(ctx, query, date)
}

// List returns reservations by date descending, then in slot catalog order.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Reservation, error) {
	args := []any{r.catalog.Labels()}
	var where []string
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("preferred_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("preferred_date <= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + reservationColumns + ` FROM reservations`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY preferred_date DESC, array_position($1::text[], preferred_time), preferred_time")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return r.queryReservations(ctx, b.String(), args...)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1::uuid`
	res, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reservations: select failed: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) Update(ctx context.Context, in *Reservation) (*Reservation, error) {
	query := `
		UPDATE reservations
		SET preferred_date = $2, preferred_time = $3, name = $4, phone = $5,
			email = NULLIF($6, ''), service = NULLIF($7, ''), message = NULLIF($8, ''), follow_up_date = $9
		WHERE id = $1::uuid
		RETURNING created_at
	`
	out := *in
	if err := r.pool.QueryRow(ctx, query,
		in.ID,
		in.Date,
		in.Slot,
		in.Name,
		in.Phone,
		in.Email,
		in.Service,
		in.Message,
		in.FollowUpDate,
	).Scan(&out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err, reservationSlotKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("reservations: update failed: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1::uuid`, id)
	if err != nil {
		if isMalformedID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("reservations: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIDs removes a batch and reports the ids actually deleted. Missing ids are skipped.
func (r *PostgresRepository) DeleteIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `DELETE FROM reservations WHERE id = ANY($1::uuid[]) RETURNING id::text`, ids)
	if err != nil {
		return nil, fmt.Errorf("reservations: batch delete failed: %w", err)
	}
	defer rows.Close()
	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reservations: scan failed: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservations: rows: %w", err)
	}
	return deleted, nil
}

func (r *PostgresRepository) InsertBlocked(ctx context.Context, in *BlockedDate) (*BlockedDate, error) {
	query := `
		INSERT INTO blocked_dates (blocked_date, reason)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id::text, created_at
	`
	out := *in
	if err := r.pool.QueryRow(ctx, query, in.Date, in.Reason).Scan(&out.ID, &out.CreatedAt); err != nil {
		if isUniqueViolation(err, blockedDateKey) {
			return nil, ErrAlreadyBlocked
		}
		return nil, fmt.Errorf("reservations: block date failed: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) ListBlocked(ctx context.Context) ([]*BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, blocked_date, COALESCE(reason, ''), created_at
		FROM blocked_dates
		ORDER BY blocked_date`)
	if err != nil {
		return nil, fmt.Errorf("reservations: select blocked failed: %w", err)
	}
	defer rows.Close()
	var out []*BlockedDate
	for rows.Next() {
		var b BlockedDate
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("reservations: scan failed: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservations: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteBlocked(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_dates WHERE id = $1::uuid`, id)
	if err != nil {
		if isMalformedID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("reservations: unblock failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) IsBlocked(ctx context.Context, date time.Time) (bool, error) {
	var blocked bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blocked_dates WHERE blocked_date = $1)`, date).Scan(&blocked); err != nil {
		return false, fmt.Errorf("reservations: blocked lookup failed: %w", err)
	}
	return blocked, nil
}
