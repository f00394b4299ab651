// Package memory implements the repositories in process. It backs the
// STORE=memory dev mode and the cross-service scenario tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
)

type txKey struct{}

// Store holds every table. Transactions are serialized by txMu and undone
// from a snapshot when the callback fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data tables
}

type tables struct {
	users      map[uuid.UUID]domain.User
	refPrices  map[uuid.UUID]domain.ReferencePrice
	listings   map[uuid.UUID]domain.Listing
	orders     map[uuid.UUID]domain.Order
	disputes   map[uuid.UUID]domain.Dispute
	rooms      map[uuid.UUID]domain.ChatRoom
	messages   map[uuid.UUID]domain.ChatMessage
	audit      []domain.AuditLogEntry
	scores     map[uuid.UUID]decimal.Decimal
	repEntries []domain.ReputationEntry
}

func New() *Store {
	return &Store{data: tables{
		users:     make(map[uuid.UUID]domain.User),
		refPrices: make(map[uuid.UUID]domain.ReferencePrice),
		listings:  make(map[uuid.UUID]domain.Listing),
		orders:    make(map[uuid.UUID]domain.Order),
		disputes:  make(map[uuid.UUID]domain.Dispute),
		rooms:     make(map[uuid.UUID]domain.ChatRoom),
		messages:  make(map[uuid.UUID]domain.ChatMessage),
		scores:    make(map[uuid.UUID]decimal.Decimal),
	}}
}

// WithinTx runs fn as one unit. Nested calls join the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (t tables) clone() tables {
	c := tables{
		users:      make(map[uuid.UUID]domain.User, len(t.users)),
		refPrices:  make(map[uuid.UUID]domain.ReferencePrice, len(t.refPrices)),
		listings:   make(map[uuid.UUID]domain.Listing, len(t.listings)),
		orders:     make(map[uuid.UUID]domain.Order, len(t.orders)),
		disputes:   make(map[uuid.UUID]domain.Dispute, len(t.disputes)),
		rooms:      make(map[uuid.UUID]domain.ChatRoom, len(t.rooms)),
		messages:   make(map[uuid.UUID]domain.ChatMessage, len(t.messages)),
		audit:      append([]domain.AuditLogEntry(nil), t.audit...),
		scores:     make(map[uuid.UUID]decimal.Decimal, len(t.scores)),
		repEntries: append([]domain.ReputationEntry(nil), t.repEntries...),
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.refPrices {
		c.refPrices[k] = v
	}
	for k, v := range t.listings {
		c.listings[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = v
	}
	for k, v := range t.disputes {
		c.disputes[k] = v
	}
	for k, v := range t.rooms {
		c.rooms[k] = v
	}
	for k, v := range t.messages {
		c.messages[k] = v
	}
	for k, v := range t.scores {
		c.scores[k] = v
	}
	return c
}

func (s *Store) Users() *UserRepository                     { return &UserRepository{s} }
func (s *Store) ReferencePrices() *ReferencePriceRepository { return &ReferencePriceRepository{s} }
func (s *Store) Listings() *ListingRepository               { return &ListingRepository{s} }
func (s *Store) Orders() *OrderRepository                   { return &OrderRepository{s} }
func (s *Store) Disputes() *DisputeRepository               { return &DisputeRepository{s} }
func (s *Store) Chat() *ChatRepository                      { return &ChatRepository{s} }
func (s *Store) Audit() *AuditRepository                    { return &AuditRepository{s} }
func (s *Store) Reputation() *ReputationRepository          { return &ReputationRepository{s} }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// write applies fn under the data lock. Outside a transaction it also takes
// txMu so a concurrent rollback cannot discard the write.
func (s *Store) write(ctx context.Context, fn func(t *tables) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); !ok {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) read(fn func(t *tables) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}
