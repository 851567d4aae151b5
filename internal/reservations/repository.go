package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cosmetica/clinic-booking/internal/slots"
)

// Repository defines the storage collaborator for reservations and blocked dates.
// Implementations must enforce uniqueness of (date, slot) and of blocked dates.
type Repository interface {
	Insert(ctx context.Context, r *Reservation) (*Reservation, error)
	ListByDate(ctx context.Context, date time.Time) ([]*Reservation, error)
	ListBySlot(ctx context.Context, date time.Time, slot string) ([]*Reservation, error)
	ListThrough(ctx context.Context, date time.Time) ([]*Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]*Reservation, error)
	Get(ctx context.Context, id string) (*Reservation, error)
	Update(ctx context.Context, r *Reservation) (*Reservation, error)
	Delete(ctx context.Context, id string) error
	DeleteIDs(ctx context.Context, ids []string) ([]string, error)

	InsertBlocked(ctx context.Context, b *BlockedDate) (*BlockedDate, error)
	ListBlocked(ctx context.Context) ([]*BlockedDate, error)
	DeleteBlocked(ctx context.Context, id string) error
	IsBlocked(ctx context.Context, date time.Time) (bool, error)
}

// InMemoryRepository keeps reservations in process memory. Used for local runs and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	catalog slots.Catalog
	rows    map[string]*Reservation
	blocked map[string]*BlockedDate
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		catalog: slots.DefaultCatalog,
		rows:    make(map[string]*Reservation),
		blocked: make(map[string]*BlockedDate),
	}
}

func dayKey(t time.Time) string {
	return t.Format(slots.DateLayout)
}

func (r *InMemoryRepository) takenLocked(date time.Time, slot, exceptID string) bool {
	for _, row := range r.rows {
		if row.ID != exceptID && row.Slot == slot && dayKey(row.Date) == dayKey(date) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) Insert(ctx context.Context, in *Reservation) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenLocked(in.Date, in.Slot, "") {
		return nil, ErrConflict
	}
	row := *in
	row.ID = uuid.New().String()
	row.CreatedAt = time.Now().UTC()
	r.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (r *InMemoryRepository) collect(match func(*Reservation) bool) []*Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Reservation
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sortReservations(out, r.catalog)
	return out
}

func (r *InMemoryRepository) ListByDate(ctx context.Context, date time.Time) ([]*Reservation, error) {
	key := dayKey(date)
	return r.collect(func(row *Reservation) bool { return dayKey(row.Date) == key }), nil
}

func (r *InMemoryRepository) ListBySlot(ctx context.Context, date time.Time, slot string) ([]*Reservation, error) {
	key := dayKey(date)
	return r.collect(func(row *Reservation) bool { return dayKey(row.Date) == key && row.Slot == slot }), nil
}

func (r *InMemoryRepository) ListThrough(ctx context.Context, date time.Time) ([]*Reservation, error) {
	key := dayKey(date)
	return r.collect(func(row *Reservation) bool { return dayKey(row.Date) <= key }), nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Reservation, error) {
	out := r.collect(func(row *Reservation) bool {
		if !filter.From.IsZero() && dayKey(row.Date) < dayKey(filter.From) {
			return false
		}
		if !filter.To.IsZero() && dayKey(row.Date) > dayKey(filter.To) {
			return false
		}
		return true
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, in *Reservation) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[in.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.takenLocked(in.Date, in.Slot, in.ID) {
		return nil, ErrConflict
	}
	row := *in
	row.CreatedAt = existing.CreatedAt
	r.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *InMemoryRepository) DeleteIDs(ctx context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted []string
	for _, id := range ids {
		if _, ok := r.rows[id]; ok {
			delete(r.rows, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (r *InMemoryRepository) InsertBlocked(ctx context.Context, in *BlockedDate) (*BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dayKey(in.Date)
	for _, b := range r.blocked {
		if dayKey(b.Date) == key {
			return nil, ErrAlreadyBlocked
		}
	}
	row := *in
	row.ID = uuid.New().String()
	row.CreatedAt = time.Now().UTC()
	r.blocked[row.ID] = &row
	out := row
	return &out, nil
}

func (r *InMemoryRepository) ListBlocked(ctx context.Context) ([]*BlockedDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*BlockedDate, 0, len(r.blocked))
	for _, b := range r.blocked {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *InMemoryRepository) DeleteBlocked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocked[id]; !ok {
		return ErrNotFound
	}
	delete(r.blocked, id)
	return nil
}

func (r *InMemoryRepository) IsBlocked(ctx context.Context, date time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := dayKey(date)
	for _, b := range r.blocked {
		if dayKey(b.Date) == key {
			return true, nil
		}
	}
	return false, nil
}

// sortReservations orders by date descending, then by catalog position.
func sortReservations(rows []*Reservation, catalog slots.Catalog) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := dayKey(rows[i].Date), dayKey(rows[j].Date)
		if di != dj {
			return di > dj
		}
		return catalog.Index(rows[i].Slot) < catalog.Index(rows[j].Slot)
	})
}
