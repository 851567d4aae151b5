package reservations

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cosmetica/clinic-booking/internal/notify"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/internal/phone"
	"github.com/cosmetica/clinic-booking/internal/slots"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.reservations")

// Notifier hands a notification to the asynchronous channel.
type Notifier interface {
	Enqueue(ctx context.Context, req notify.Request) error
}

const (
	sourcePublic = "public"
	sourceAdmin  = "admin"

	noPastBookingsMessage = "No past bookings to delete"
	cancelledMessage      = "Your appointment has been cancelled. You will receive a WhatsApp confirmation shortly."
)

// Service implements booking, cancellation, cleanup and the admin operations.
type Service struct {
	repo          Repository
	notifier      Notifier
	catalog       slots.Catalog
	logger        *logging.Logger
	metrics       *metrics.BookingMetrics
	now           func() time.Time
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the channel used for confirmation and cancellation messages.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics records booking outcomes.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifyTimeout bounds each enqueue attempt.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithCatalog replaces the default slot catalog.
func WithCatalog(c slots.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("reservations: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:          repo,
		catalog:       slots.DefaultCatalog,
		logger:        logger,
		now:           time.Now,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the slot catalog in use.
func (s *Service) Catalog() slots.Catalog {
	return s.catalog
}

func (s *Service) parseDate(field, value string) (time.Time, error) {
	value = trimmed(value)
	if value == "" {
		return time.Time{}, invalid(field, "is required")
	}
	d, err := slots.ParseDate(value)
	if err != nil {
		return time.Time{}, invalid(field, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

func (s *Service) checkSlot(value string) (string, error) {
	value = trimmed(value)
	if value == "" {
		return "", invalid("preferred_time", "is required")
	}
	if !s.catalog.Contains(value) {
		return "", invalid("preferred_time", "is not an available slot")
	}
	return value, nil
}

// CheckAvailability lists the taken slots of a date. The result is advisory only.
func (s *Service) CheckAvailability(ctx context.Context, date string) (*Availability, error) {
	day, err := s.parseDate("date", date)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	blocked, err := s.repo.IsBlocked(ctx, day)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(rows))
	out := &Availability{Date: day.Format(slots.DateLayout), Blocked: blocked, Taken: []string{}}
	for _, row := range rows {
		if !taken[row.Slot] {
			taken[row.Slot] = true
			out.Taken = append(out.Taken, row.Slot)
		}
	}
	now := s.now()
	for _, label := range s.catalog.Labels() {
		out.Slots = append(out.Slots, SlotStatus{
			Label:     label,
			Available: !blocked && !taken[label] && !slots.Ended(day, label, now),
		})
	}
	return out, nil
}

// Book validates a draft and writes it. The storage constraint decides conflicts.
func (s *Service) Book(ctx context.Context, draft Draft) (*Reservation, error) {
	return s.create(ctx, draft, sourcePublic)
}

// AdminCreate books on behalf of a customer through the same path as Book.
func (s *Service) AdminCreate(ctx context.Context, draft Draft) (*Reservation, error) {
	return s.create(ctx, draft, sourceAdmin)
}

func (s *Service) create(ctx context.Context, draft Draft, source string) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.book")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking.source", source))

	res, err := s.validateDraft(ctx, draft)
	if err != nil {
		s.metrics.ObserveBooking(source, outcome(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("clinic.booking.date", res.Date.Format(slots.DateLayout)),
		attribute.String("clinic.booking.slot", res.Slot),
	)

	saved, err := s.repo.Insert(ctx, res)
	if err != nil {
		s.metrics.ObserveBooking(source, outcome(err))
		if !errors.Is(err, ErrConflict) {
			span.RecordError(err)
		}
		return nil, err
	}
	s.metrics.ObserveBooking(source, "created")
	s.logger.Info("reservation created",
		"reservation_id", saved.ID,
		"date", saved.Date.Format(slots.DateLayout),
		"slot", saved.Slot,
		"source", source,
	)
	s.notifyAsync(ctx, notify.KindConfirm, saved, saved.Phone)
	return saved, nil
}

func (s *Service) validateDraft(ctx context.Context, draft Draft) (*Reservation, error) {
	day, err := s.parseDate("preferred_date", draft.Date)
	if err != nil {
		return nil, err
	}
	slot, err := s.checkSlot(draft.Slot)
	if err != nil {
		return nil, err
	}
	if trimmed(draft.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if !phone.Valid(phone.Normalize(draft.Phone)) {
		return nil, invalid("phone", reasonShortPhone)
	}
	blocked, err := s.repo.IsBlocked(ctx, day)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrDateBlocked
	}
	return &Reservation{
		Date:    day,
		Slot:    slot,
		Name:    trimmed(draft.Name),
		Phone:   trimmed(draft.Phone),
		Email:   trimmed(draft.Email),
		Service: trimmed(draft.Service),
		Message: trimmed(draft.Message),
	}, nil
}

// Cancel resolves a customer cancellation by phone, date and slot. Exactly one match is deleted.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	ctx, span := tracer.Start(ctx, "reservations.cancel")
	defer span.End()

	result, err := s.cancel(ctx, req)
	s.metrics.ObserveCancellation(outcome(err))
	if err != nil && !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAmbiguousMatch) {
		span.RecordError(err)
	}
	return result, err
}

func (s *Service) cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if trimmed(req.Phone) == "" {
		return nil, invalid("phone", "is required")
	}
	if trimmed(req.Date) == "" {
		return nil, invalid("preferred_date", "is required")
	}
	if trimmed(req.Slot) == "" {
		return nil, invalid("preferred_time", "is required")
	}
	if !phone.Valid(phone.Normalize(req.Phone)) {
		return nil, invalid("phone", reasonShortPhone)
	}
	day, err := s.parseDate("preferred_date", req.Date)
	if err != nil {
		return nil, err
	}
	slot := trimmed(req.Slot)

	candidates, err := s.repo.ListBySlot(ctx, day, slot)
	if err != nil {
		return nil, err
	}
	var matches []*Reservation
	for _, c := range candidates {
		if phone.Equal(c.Phone, req.Phone) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		s.logger.Warn("cancellation matched multiple reservations",
			"date", day.Format(slots.DateLayout),
			"slot", slot,
			"matches", len(matches),
		)
		return nil, ErrAmbiguousMatch
	}

	target := matches[0]
	if err := s.repo.Delete(ctx, target.ID); err != nil {
		return nil, err
	}
	s.logger.Info("reservation cancelled", "reservation_id", target.ID, "phone", logging.MaskPhone(phone.Normalize(req.Phone)))
	s.notifyAsync(ctx, notify.KindCancel, target, req.Phone)
	return &CancelResult{ReservationID: target.ID, Success: true, Message: cancelledMessage}, nil
}

// ReapPast deletes every reservation whose slot has ended at the clinic. Safe to run concurrently.
func (s *Service) ReapPast(ctx context.Context) (*ReapResult, error) {
	ctx, span := tracer.Start(ctx, "reservations.reap")
	defer span.End()

	now := s.now()
	rows, err := s.repo.ListThrough(ctx, slots.Today(now))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var ids []string
	for _, row := range rows {
		if slots.Ended(row.Date, row.Slot, now) {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return &ReapResult{DeletedIDs: []string{}, Message: noPastBookingsMessage}, nil
	}
	deleted, err := s.repo.DeleteIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if deleted == nil {
		deleted = []string{}
	}
	s.metrics.ObserveReaped(len(deleted))
	s.logger.Info("past reservations deleted", "deleted_count", len(deleted))
	return &ReapResult{DeletedCount: len(deleted), DeletedIDs: deleted}, nil
}

// List returns reservations for the admin dashboard.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Reservation, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one reservation.
func (s *Service) Get(ctx context.Context, id string) (*Reservation, error) {
	return s.repo.Get(ctx, id)
}

// AdminUpdate replaces the editable fields. There is no availability pre-check; the
// storage constraint still reports conflicts.
func (s *Service) AdminUpdate(ctx context.Context, id string, upd Update) (*Reservation, error) {
	day, err := s.parseDate("preferred_date", upd.Date)
	if err != nil {
		return nil, err
	}
	slot, err := s.checkSlot(upd.Slot)
	if err != nil {
		return nil, err
	}
	if trimmed(upd.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if trimmed(upd.Phone) == "" {
		return nil, invalid("phone", "is required")
	}
	var followUp *time.Time
	if trimmed(upd.FollowUpDate) != "" {
		d, err := s.parseDate("follow_up_date", upd.FollowUpDate)
		if err != nil {
			return nil, err
		}
		followUp = &d
	}
	saved, err := s.repo.Update(ctx, &Reservation{
		ID:           id,
		Date:         day,
		Slot:         slot,
		Name:         trimmed(upd.Name),
		Phone:        trimmed(upd.Phone),
		Email:        trimmed(upd.Email),
		Service:      trimmed(upd.Service),
		Message:      trimmed(upd.Message),
		FollowUpDate: followUp,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("reservation updated", "reservation_id", saved.ID)
	return saved, nil
}

// AdminDelete removes a reservation and tells the customer it was cancelled.
func (s *Service) AdminDelete(ctx context.Context, id string) error {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("reservation deleted by admin", "reservation_id", id)
	s.notifyAsync(ctx, notify.KindCancel, res, res.Phone)
	return nil
}

// BlockDate stops bookings on a date. Blocking twice returns ErrAlreadyBlocked.
func (s *Service) BlockDate(ctx context.Context, req BlockRequest) (*BlockedDate, error) {
	day, err := s.parseDate("blocked_date", req.Date)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.InsertBlocked(ctx, &BlockedDate{Date: day, Reason: trimmed(req.Reason)})
	if err != nil {
		return nil, err
	}
	s.logger.Info("date blocked", "date", day.Format(slots.DateLayout))
	return b, nil
}

func (s *Service) ListBlocked(ctx context.Context) ([]*BlockedDate, error) {
	return s.repo.ListBlocked(ctx)
}

func (s *Service) UnblockDate(ctx context.Context, id string) error {
	return s.repo.DeleteBlocked(ctx, id)
}

// notifyAsync enqueues a message without blocking or failing the caller. Errors are logged only.
func (s *Service) notifyAsync(ctx context.Context, kind notify.Kind, res *Reservation, to string) {
	if s.notifier == nil {
		return
	}
	req := notify.Request{
		Kind:    kind,
		Phone:   to,
		Name:    res.Name,
		Date:    res.Date.Format(slots.DateLayout),
		Slot:    res.Slot,
		Service: res.Service,
	}
	detached := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(detached, s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Enqueue(ctx, req); err != nil {
			s.metrics.ObserveNotification(string(kind), "enqueue_failed", 0)
			s.logger.Warn("notification enqueue failed",
				"kind", kind,
				"reservation_id", res.ID,
				"error", err,
			)
		}
	}()
}

// WaitNotifications blocks until in-flight notification enqueues finish.
func (s *Service) WaitNotifications() {
	s.pending.Wait()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDateBlocked):
		return "blocked"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAmbiguousMatch):
		return "ambiguous"
	default:
		return "error"
	}
}
