package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in settlement and payout
// transactions. Transaction hands fn a Store bound to a single database
// transaction; returning an error from fn rolls every write back.
type Store interface {
	Payments() PaymentRepository
	Workshops() WorkshopRepository
	Registrations() RegistrationRepository
	Bookings() BookingRepository
	Payouts() PayoutRepository
	AdminActions() AdminActionRepository
	Users() UserRepository
	Outbox() OutboxRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GormStore implements Store on top of a gorm connection or transaction.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Payments() PaymentRepository           { return NewGormPaymentRepository(s.db) }
func (s *GormStore) Workshops() WorkshopRepository         { return NewGormWorkshopRepository(s.db) }
func (s *GormStore) Registrations() RegistrationRepository { return NewGormRegistrationRepository(s.db) }
func (s *GormStore) Bookings() BookingRepository           { return NewGormBookingRepository(s.db) }
func (s *GormStore) Payouts() PayoutRepository             { return NewGormPayoutRepository(s.db) }
func (s *GormStore) AdminActions() AdminActionRepository   { return NewGormAdminActionRepository(s.db) }
func (s *GormStore) Users() UserRepository                 { return NewGormUserRepository(s.db) }
func (s *GormStore) Outbox() OutboxRepository              { return NewGormOutboxRepository(s.db) }

// Transaction runs fn inside a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
