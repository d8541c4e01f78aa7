package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"settlement-service/models"
	"settlement-service/notifier"
	"settlement-service/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- in-memory store ---

type memState struct {
	payments      map[uuid.UUID]models.Payment
	workshops     map[uuid.UUID]models.Workshop
	registrations map[uuid.UUID]models.Registration
	bookings      map[uuid.UUID]models.Booking
	payouts       map[uuid.UUID]models.Payout
	users         map[uuid.UUID]models.User
	adminActions  []models.AdminAction
	outbox        []models.OutboxMessage
}

func (m *memState) clone() *memState {
	c := &memState{
		payments:      make(map[uuid.UUID]models.Payment, len(m.payments)),
		workshops:     make(map[uuid.UUID]models.Workshop, len(m.workshops)),
		registrations: make(map[uuid.UUID]models.Registration, len(m.registrations)),
		bookings:      make(map[uuid.UUID]models.Booking, len(m.bookings)),
		payouts:       make(map[uuid.UUID]models.Payout, len(m.payouts)),
		users:         make(map[uuid.UUID]models.User, len(m.users)),
		adminActions:  append([]models.AdminAction(nil), m.adminActions...),
		outbox:        append([]models.OutboxMessage(nil), m.outbox...),
	}
	for k, v := range m.payments {
		c.payments[k] = v
	}
	for k, v := range m.workshops {
		c.workshops[k] = v
	}
	for k, v := range m.registrations {
		c.registrations[k] = v
	}
	for k, v := range m.bookings {
		c.bookings[k] = v
	}
	for k, v := range m.payouts {
		c.payouts[k] = v
	}
	for k, v := range m.users {
		c.users[k] = v
	}
	return c
}

// fakeStore serializes transactions with one mutex, which stands in for the
// row locks of the real database, and rolls state back when fn fails.
type fakeStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool

	// failure injection
	failPayoutCreate   error
	failWorkshopUpdate map[uuid.UUID]error
	failAdminAction    error
	failListDue        error
	transactions       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mu: &sync.Mutex{},
		state: &memState{
			payments:      map[uuid.UUID]models.Payment{},
			workshops:     map[uuid.UUID]models.Workshop{},
			registrations: map[uuid.UUID]models.Registration{},
			bookings:      map[uuid.UUID]models.Booking{},
			payouts:       map[uuid.UUID]models.Payout{},
			users:         map[uuid.UUID]models.User{},
		},
		failWorkshopUpdate: map[uuid.UUID]error{},
	}
}

func (s *fakeStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *fakeStore) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions++

	snapshot := s.state.clone()
	txStore := *s
	txStore.inTx = true
	if err := fn(&txStore); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *fakeStore) Payments() repository.PaymentRepository           { return fakePayments{s} }
func (s *fakeStore) Workshops() repository.WorkshopRepository         { return fakeWorkshops{s} }
func (s *fakeStore) Registrations() repository.RegistrationRepository { return fakeRegistrations{s} }
func (s *fakeStore) Bookings() repository.BookingRepository           { return fakeBookings{s} }
func (s *fakeStore) Payouts() repository.PayoutRepository             { return fakePayouts{s} }
func (s *fakeStore) AdminActions() repository.AdminActionRepository   { return fakeAdminActions{s} }
func (s *fakeStore) Users() repository.UserRepository                 { return fakeUsers{s} }
func (s *fakeStore) Outbox() repository.OutboxRepository              { return fakeOutbox{s} }

// seed helpers (not transactional)

func (s *fakeStore) putPayment(p models.Payment)           { s.state.payments[p.ID] = p }
func (s *fakeStore) putWorkshop(w models.Workshop)         { s.state.workshops[w.ID] = w }
func (s *fakeStore) putRegistration(r models.Registration) { s.state.registrations[r.ID] = r }
func (s *fakeStore) putBooking(b models.Booking)           { s.state.bookings[b.ID] = b }
func (s *fakeStore) putUser(u models.User)                 { s.state.users[u.ID] = u }
func (s *fakeStore) putPayout(p models.Payout)             { s.state.payouts[p.ID] = p }

func (s *fakeStore) payment(id uuid.UUID) models.Payment {
	defer s.lock()()
	return s.state.payments[id]
}

func (s *fakeStore) workshop(id uuid.UUID) models.Workshop {
	defer s.lock()()
	return s.state.workshops[id]
}

func (s *fakeStore) registration(id uuid.UUID) models.Registration {
	defer s.lock()()
	return s.state.registrations[id]
}

func (s *fakeStore) booking(id uuid.UUID) models.Booking {
	defer s.lock()()
	return s.state.bookings[id]
}

func (s *fakeStore) allPayouts() []models.Payout {
	defer s.lock()()
	out := make([]models.Payout, 0, len(s.state.payouts))
	for _, p := range s.state.payouts {
		out = append(out, p)
	}
	return out
}

func (s *fakeStore) outboxEvents() []models.OutboxMessage {
	defer s.lock()()
	return append([]models.OutboxMessage(nil), s.state.outbox...)
}

func (s *fakeStore) auditLog() []models.AdminAction {
	defer s.lock()()
	return append([]models.AdminAction(nil), s.state.adminActions...)
}

// --- repositories ---

type fakePayments struct{ s *fakeStore }

func (r fakePayments) Create(_ context.Context, p *models.Payment) error {
	defer r.s.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.state.payments[p.ID] = *p
	return nil
}

func (r fakePayments) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	defer r.s.lock()()
	p, ok := r.s.state.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r fakePayments) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r fakePayments) Update(_ context.Context, p *models.Payment) error {
	defer r.s.lock()()
	if p.GatewayTxnID != nil {
		for id, other := range r.s.state.payments {
			if id != p.ID && other.GatewayTxnID != nil && *other.GatewayTxnID == *p.GatewayTxnID {
				return errors.New(`duplicate key value violates unique constraint "idx_payments_gateway_txn_id"`)
			}
		}
	}
	r.s.state.payments[p.ID] = *p
	return nil
}

func (r fakePayments) ListPaidByWorkshop(_ context.Context, workshopID uuid.UUID) ([]models.Payment, error) {
	defer r.s.lock()()
	var out []models.Payment
	for _, p := range r.s.state.payments {
		if p.WorkshopID != nil && *p.WorkshopID == workshopID &&
			p.EntityType == models.EntityRegistration && p.Status == models.PaymentStatusPaid {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeWorkshops struct{ s *fakeStore }

func (r fakeWorkshops) FindByID(_ context.Context, id uuid.UUID) (*models.Workshop, error) {
	defer r.s.lock()()
	w, ok := r.s.state.workshops[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &w, nil
}

func (r fakeWorkshops) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	return r.FindByID(ctx, id)
}

func (r fakeWorkshops) Update(_ context.Context, w *models.Workshop) error {
	defer r.s.lock()()
	if err := r.s.failWorkshopUpdate[w.ID]; err != nil {
		return err
	}
	r.s.state.workshops[w.ID] = *w
	return nil
}

func (r fakeWorkshops) ListDueForRelease(_ context.Context, cutoff time.Time, limit int) ([]models.Workshop, error) {
	defer r.s.lock()()
	if r.s.failListDue != nil {
		return nil, r.s.failListDue
	}
	var out []models.Workshop
	for _, w := range r.s.state.workshops {
		if w.EligibleForAutomaticRelease(cutoff) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRegistrations struct{ s *fakeStore }

func (r fakeRegistrations) FindByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	defer r.s.lock()()
	reg, ok := r.s.state.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &reg, nil
}

func (r fakeRegistrations) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return r.FindByID(ctx, id)
}

func (r fakeRegistrations) Update(_ context.Context, reg *models.Registration) error {
	defer r.s.lock()()
	r.s.state.registrations[reg.ID] = *reg
	return nil
}

func (r fakeRegistrations) AssignNumber(_ context.Context, id uuid.UUID, generate func() string) (string, error) {
	defer r.s.lock()()
	for attempt := 0; attempt < 5; attempt++ {
		number := generate()
		if r.numberTaken(id, number) {
			continue
		}
		reg := r.s.state.registrations[id]
		reg.RegistrationNumber = &number
		r.s.state.registrations[id] = reg
		return number, nil
	}
	return "", repository.ErrRegistrationNumberExhausted
}

func (r fakeRegistrations) numberTaken(id uuid.UUID, number string) bool {
	for _, other := range r.s.state.registrations {
		if other.ID != id && other.RegistrationNumber != nil && *other.RegistrationNumber == number {
			return true
		}
	}
	return false
}

type fakeBookings struct{ s *fakeStore }

func (r fakeBookings) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	defer r.s.lock()()
	b, ok := r.s.state.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r fakeBookings) Update(_ context.Context, b *models.Booking) error {
	defer r.s.lock()()
	r.s.state.bookings[b.ID] = *b
	return nil
}

func (r fakeBookings) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]models.Booking, error) {
	defer r.s.lock()()
	var out []models.Booking
	for _, b := range r.s.state.bookings {
		if b.Status == models.BookingConfirmed && !b.BookingDate.Before(from) && b.BookingDate.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakePayouts struct{ s *fakeStore }

func (r fakePayouts) Create(_ context.Context, p *models.Payout) error {
	defer r.s.lock()()
	if r.s.failPayoutCreate != nil {
		return r.s.failPayoutCreate
	}
	if p.Status == models.PayoutStatusReleased {
		for _, other := range r.s.state.payouts {
			if other.WorkshopID == p.WorkshopID && other.Status == models.PayoutStatusReleased {
				return errors.New(`duplicate key value violates unique constraint "uq_payouts_active_workshop"`)
			}
		}
	}
	r.s.state.payouts[p.ID] = *p
	return nil
}

func (r fakePayouts) FindActiveByWorkshop(_ context.Context, workshopID uuid.UUID) (*models.Payout, error) {
	defer r.s.lock()()
	for _, p := range r.s.state.payouts {
		if p.WorkshopID == workshopID && p.Status == models.PayoutStatusReleased {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePayouts) MarkSuperseded(_ context.Context, id, supersededBy uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	p, ok := r.s.state.payouts[id]
	if !ok || p.Status != models.PayoutStatusReleased {
		return gorm.ErrRecordNotFound
	}
	p.Status = models.PayoutStatusSuperseded
	p.SupersededBy = &supersededBy
	p.SupersededAt = &at
	r.s.state.payouts[id] = p
	return nil
}

func (r fakePayouts) List(_ context.Context, filter repository.PayoutFilter, page, limit int) ([]models.Payout, int64, error) {
	defer r.s.lock()()
	var matched []models.Payout
	for _, p := range r.s.state.payouts {
		if filter.WorkshopID != nil && p.WorkshopID != *filter.WorkshopID {
			continue
		}
		if filter.CreatorID != nil && p.CreatorID != *filter.CreatorID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ReleasedAt.After(matched[j].ReleasedAt) })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type fakeAdminActions struct{ s *fakeStore }

func (r fakeAdminActions) Create(_ context.Context, a *models.AdminAction) error {
	defer r.s.lock()()
	if r.s.failAdminAction != nil {
		return r.s.failAdminAction
	}
	a.ID = uuid.New()
	r.s.state.adminActions = append(r.s.state.adminActions, *a)
	return nil
}

type fakeUsers struct{ s *fakeStore }

func (r fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r fakeUsers) ListByRole(_ context.Context, role string) ([]models.User, error) {
	defer r.s.lock()()
	var out []models.User
	for _, u := range r.s.state.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r fakeUsers) ClearPushEndpoint(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	u := r.s.state.users[id]
	u.PushEndpointARN = nil
	r.s.state.users[id] = u
	return nil
}

type fakeOutbox struct{ s *fakeStore }

func (r fakeOutbox) Add(_ context.Context, m *models.OutboxMessage) error {
	defer r.s.lock()()
	m.ID = uuid.New()
	r.s.state.outbox = append(r.s.state.outbox, *m)
	return nil
}

func (r fakeOutbox) ClaimBatch(context.Context, int, int) ([]models.OutboxMessage, error) {
	return nil, nil
}

func (r fakeOutbox) MarkProcessed(context.Context, uuid.UUID, time.Time) error { return nil }

func (r fakeOutbox) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

// --- notifications ---

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notifier.Message
	err      error
}

func (d *recordingDispatcher) Notify(_ context.Context, msg notifier.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.err
}

func (d *recordingDispatcher) ofType(t string) []notifier.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notifier.Message
	for _, m := range d.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeCallbacks struct {
	mu   sync.Mutex
	seen map[string]string
	err  error
}

func newFakeCallbacks() *fakeCallbacks { return &fakeCallbacks{seen: map[string]string{}} }

func (c *fakeCallbacks) Seen(_ context.Context, txn string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.seen[txn]
	return ok, nil
}

func (c *fakeCallbacks) Remember(_ context.Context, txn, paymentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.seen[txn] = paymentID
	return nil
}
