package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
)

type UserRepository struct{ s *Store }

// Upsert stores u, replacing any user with the same id.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	return r.s.write(ctx, func(t *tables) error {
		t.users[u.ID] = *u
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return pkgerrors.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(t *tables) error {
		for _, u := range t.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return pkgerrors.ErrUserNotFound
	})
	return out, err
}

type ReferencePriceRepository struct{ s *Store }

func (r *ReferencePriceRepository) Create(ctx context.Context, rp *domain.ReferencePrice) error {
	return r.s.write(ctx, func(t *tables) error {
		t.refPrices[rp.ID] = *rp
		return nil
	})
}

func (r *ReferencePriceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ReferencePrice, error) {
	var out *domain.ReferencePrice
	err := r.s.read(func(t *tables) error {
		rp, ok := t.refPrices[id]
		if !ok {
			return pkgerrors.ErrReferencePriceNotFound
		}
		out = &rp
		return nil
	})
	return out, err
}

type ListingRepository struct{ s *Store }

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	return r.s.write(ctx, func(t *tables) error {
		t.listings[l.ID] = copyListing(l)
		return nil
	})
}

func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.listings[l.ID]; !ok {
			return pkgerrors.ErrListingNotFound
		}
		t.listings[l.ID] = copyListing(l)
		return nil
	})
}

func (r *ListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var out *domain.Listing
	err := r.s.read(func(t *tables) error {
		l, ok := t.listings[id]
		if !ok {
			return pkgerrors.ErrListingNotFound
		}
		c := copyListing(&l)
		out = &c
		return nil
	})
	return out, err
}

// FindByIDForUpdate relies on WithinTx serialization for exclusivity.
func (r *ListingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.FindByID(ctx, id)
}

func (r *ListingRepository) List(ctx context.Context, filter domain.ListingFilter, limit, offset int) ([]*domain.Listing, error) {
	var out []*domain.Listing
	_ = r.s.read(func(t *tables) error {
		for _, l := range t.listings {
			if filter.SellerID != nil && l.SellerID != *filter.SellerID {
				continue
			}
			if filter.ReferencePriceID != nil && l.ReferencePriceID != *filter.ReferencePriceID {
				continue
			}
			if filter.Status != nil && l.Status != *filter.Status {
				continue
			}
			c := copyListing(&l)
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func copyListing(l *domain.Listing) domain.Listing {
	c := *l
	if l.ProofRefs != nil {
		c.ProofRefs = append(domain.StringList(nil), l.ProofRefs...)
	}
	return c
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return r.s.write(ctx, func(t *tables) error {
		t.orders[o.ID] = *o
		return nil
	})
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.orders[o.ID]; !ok {
			return pkgerrors.ErrOrderNotFound
		}
		t.orders[o.ID] = *o
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.read(func(t *tables) error {
		o, ok := t.orders[id]
		if !ok {
			return pkgerrors.ErrOrderNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return r.list(func(t *tables, o domain.Order) bool { return o.BuyerID == buyerID }, limit, offset), nil
}

// ListBySeller resolves the seller through each order's listing.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return r.list(func(t *tables, o domain.Order) bool {
		l, ok := t.listings[o.ListingID]
		return ok && l.SellerID == sellerID
	}, limit, offset), nil
}

func (r *OrderRepository) list(match func(t *tables, o domain.Order) bool, limit, offset int) []*domain.Order {
	var out []*domain.Order
	_ = r.s.read(func(t *tables) error {
		for _, o := range t.orders {
			if match(t, o) {
				o := o
				out = append(out, &o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset)
}

type DisputeRepository struct{ s *Store }

func (r *DisputeRepository) Create(ctx context.Context, d *domain.Dispute) error {
	return r.s.write(ctx, func(t *tables) error {
		t.disputes[d.ID] = *d
		return nil
	})
}

func (r *DisputeRepository) Update(ctx context.Context, d *domain.Dispute) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.disputes[d.ID]; !ok {
			return pkgerrors.ErrDisputeNotFound
		}
		t.disputes[d.ID] = *d
		return nil
	})
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	var out *domain.Dispute
	err := r.s.read(func(t *tables) error {
		d, ok := t.disputes[id]
		if !ok {
			return pkgerrors.ErrDisputeNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *DisputeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	return r.FindByID(ctx, id)
}

func (r *DisputeRepository) List(ctx context.Context, filter domain.DisputeFilter, limit, offset int) ([]*domain.Dispute, error) {
	var out []*domain.Dispute
	_ = r.s.read(func(t *tables) error {
		for _, d := range t.disputes {
			if filter.Status != nil && d.Status != *filter.Status {
				continue
			}
			if filter.ReporterID != nil && d.ReporterID != *filter.ReporterID {
				continue
			}
			if filter.ReportedUserID != nil && d.ReportedUserID != *filter.ReportedUserID {
				continue
			}
			d := d
			out = append(out, &d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// CountAgainst returns how many disputes name userID and how many of those were upheld.
func (r *DisputeRepository) CountAgainst(ctx context.Context, userID uuid.UUID) (total, upheld int, err error) {
	_ = r.s.read(func(t *tables) error {
		for _, d := range t.disputes {
			if d.ReportedUserID != userID {
				continue
			}
			total++
			if d.Status == domain.DisputeStatusResolved && d.Upheld {
				upheld++
			}
		}
		return nil
	})
	return total, upheld, nil
}

type ChatRepository struct{ s *Store }

// FindOrCreateRoom stores room unless one exists for the same listing and buyer,
// in which case the existing room is returned.
func (r *ChatRepository) FindOrCreateRoom(ctx context.Context, room *domain.ChatRoom) (*domain.ChatRoom, bool, error) {
	var out domain.ChatRoom
	created := false
	err := r.s.write(ctx, func(t *tables) error {
		for _, existing := range t.rooms {
			if existing.ListingID == room.ListingID && existing.BuyerID == room.BuyerID {
				out = existing
				return nil
			}
		}
		t.rooms[room.ID] = *room
		out = *room
		created = true
		return nil
	})
	return &out, created, err
}

func (r *ChatRepository) FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	var out *domain.ChatRoom
	err := r.s.read(func(t *tables) error {
		room, ok := t.rooms[id]
		if !ok {
			return pkgerrors.ErrChatRoomNotFound
		}
		out = &room
		return nil
	})
	return out, err
}

func (r *ChatRepository) UpdateRoom(ctx context.Context, room *domain.ChatRoom) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.rooms[room.ID]; !ok {
			return pkgerrors.ErrChatRoomNotFound
		}
		t.rooms[room.ID] = *room
		return nil
	})
}

func (r *ChatRepository) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error) {
	var out []*domain.ChatRoom
	_ = r.s.read(func(t *tables) error {
		for _, room := range t.rooms {
			if room.IsParticipant(userID) {
				room := room
				out = append(out, &room)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	return r.s.write(ctx, func(t *tables) error {
		t.messages[m.ID] = *m
		if room, ok := t.rooms[m.RoomID]; ok {
			room.UpdatedAt = m.SentAt
			t.rooms[m.RoomID] = room
		}
		return nil
	})
}

func (r *ChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	return r.messages(func(m domain.ChatMessage) bool { return m.RoomID == roomID }, false, limit, offset), nil
}

func (r *ChatRepository) FlaggedMessages(ctx context.Context, limit, offset int) ([]*domain.ChatMessage, error) {
	return r.messages(func(m domain.ChatMessage) bool { return m.IsFlagged }, true, limit, offset), nil
}

func (r *ChatRepository) messages(match func(m domain.ChatMessage) bool, newestFirst bool, limit, offset int) []*domain.ChatMessage {
	var out []*domain.ChatMessage
	_ = r.s.read(func(t *tables) error {
		for _, m := range t.messages {
			if match(m) {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return page(out, limit, offset)
}

// MarkRead flags every unread message in the room not sent by readerID.
func (r *ChatRepository) MarkRead(ctx context.Context, roomID, readerID uuid.UUID) (int, error) {
	n := 0
	err := r.s.write(ctx, func(t *tables) error {
		for id, m := range t.messages {
			if m.RoomID == roomID && m.SenderID != readerID && !m.IsRead {
				m.IsRead = true
				t.messages[id] = m
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *ChatRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n := 0
	_ = r.s.read(func(t *tables) error {
		for _, m := range t.messages {
			room, ok := t.rooms[m.RoomID]
			if ok && room.IsParticipant(userID) && m.SenderID != userID && !m.IsRead {
				n++
			}
		}
		return nil
	})
	return n, nil
}

type AuditRepository struct{ s *Store }

func (r *AuditRepository) Create(ctx context.Context, e *domain.AuditLogEntry) error {
	return r.s.write(ctx, func(t *tables) error {
		t.audit = append(t.audit, *e)
		return nil
	})
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLogEntry, error) {
	var out []*domain.AuditLogEntry
	_ = r.s.read(func(t *tables) error {
		for i := len(t.audit) - 1; i >= 0; i-- {
			e := t.audit[i]
			if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
				continue
			}
			if filter.ActionPrefix != "" && !strings.HasPrefix(e.Action, filter.ActionPrefix) {
				continue
			}
			out = append(out, &e)
		}
		return nil
	})
	return page(out, limit, offset), nil
}

type ReputationRepository struct{ s *Store }

// Append records the entry and returns the user's new score.
func (r *ReputationRepository) Append(ctx context.Context, e *domain.ReputationEntry) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := r.s.write(ctx, func(t *tables) error {
		score = t.scores[e.UserID].Add(e.Delta)
		t.scores[e.UserID] = score
		t.repEntries = append(t.repEntries, *e)
		return nil
	})
	return score, err
}

func (r *ReputationRepository) Score(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var score decimal.Decimal
	_ = r.s.read(func(t *tables) error {
		score = t.scores[userID]
		return nil
	})
	return score, nil
}

func (r *ReputationRepository) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ReputationEntry, error) {
	var out []*domain.ReputationEntry
	_ = r.s.read(func(t *tables) error {
		for i := len(t.repEntries) - 1; i >= 0; i-- {
			if t.repEntries[i].UserID == userID {
				e := t.repEntries[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	return page(out, limit, offset), nil
}
