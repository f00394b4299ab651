package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fairtix/internal/domain"
	"fairtix/pkg/errors"
)

const (
	roomColumns    = `id, listing_id, buyer_id, seller_id, status, created_at, updated_at`
	messageColumns = `id, room_id, sender_id, text, type, is_read, is_flagged, flag_reason, sent_at`
)

type ChatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// FindOrCreateRoom relies on the (listing_id, buyer_id) unique constraint: a
// concurrent insert that loses the race reads the winner's row.
func (r *ChatRepository) FindOrCreateRoom(ctx context.Context, room *domain.ChatRoom) (*domain.ChatRoom, bool, error) {
	existing, err := r.findByListingAndBuyer(ctx, room.ListingID, room.BuyerID)
	if err == nil {
		return existing, false, nil
	}
	if err != errors.ErrChatRoomNotFound {
		return nil, false, err
	}

	query := `
		INSERT INTO chat_rooms (` + roomColumns + `)
		VALUES (:id, :listing_id, :buyer_id, :seller_id, :status, :created_at, :updated_at)
		ON CONFLICT ON CONSTRAINT uq_chat_rooms_listing_buyer DO NOTHING
	`
	res, err := conn(ctx, r.db).NamedExecContext(ctx, query, room)
	if err != nil {
		var pqErr *pq.Error
		if !stderrors.As(err, &pqErr) || pqErr.Code != "23505" {
			return nil, false, errors.Wrap(err, "failed to create chat room")
		}
	} else if n, _ := res.RowsAffected(); n == 1 {
		return room, true, nil
	}

	existing, err = r.findByListingAndBuyer(ctx, room.ListingID, room.BuyerID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ChatRepository) findByListingAndBuyer(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE listing_id = $1 AND buyer_id = $2`
	err := conn(ctx, r.db).GetContext(ctx, &room, query, listingID, buyerID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrChatRoomNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find chat room")
	}
	return &room, nil
}

func (r *ChatRepository) FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := conn(ctx, r.db).GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrChatRoomNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find chat room")
	}
	return &room, nil
}

func (r *ChatRepository) UpdateRoom(ctx context.Context, room *domain.ChatRoom) error {
	res, err := conn(ctx, r.db).NamedExecContext(ctx,
		`UPDATE chat_rooms SET status = :status, updated_at = :updated_at WHERE id = :id`, room)
	if err != nil {
		return errors.Wrap(err, "failed to update chat room")
	}
	return expectRow(res, errors.ErrChatRoomNotFound)
}

func (r *ChatRepository) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error) {
	rooms := []*domain.ChatRoom{}
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE buyer_id = $1 OR seller_id = $1 ORDER BY updated_at DESC`
	if err := conn(ctx, r.db).SelectContext(ctx, &rooms, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to list chat rooms")
	}
	return rooms, nil
}

// CreateMessage stores m and bumps the room's updated_at.
func (r *ChatRepository) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	db := conn(ctx, r.db)
	query := `
		INSERT INTO chat_messages (` + messageColumns + `)
		VALUES (:id, :room_id, :sender_id, :text, :type, :is_read, :is_flagged, :flag_reason, :sent_at)
	`
	if _, err := db.NamedExecContext(ctx, query, m); err != nil {
		return errors.Wrap(err, "failed to create chat message")
	}
	_, err := db.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = $1 WHERE id = $2`, m.SentAt, m.RoomID)
	return errors.Wrap(err, "failed to touch chat room")
}

func (r *ChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE room_id = $1 ORDER BY sent_at ASC LIMIT $2 OFFSET $3`
	return r.messages(ctx, query, roomID, limit, offset)
}

func (r *ChatRepository) FlaggedMessages(ctx context.Context, limit, offset int) ([]*domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE is_flagged ORDER BY sent_at DESC LIMIT $1 OFFSET $2`
	return r.messages(ctx, query, limit, offset)
}

func (r *ChatRepository) messages(ctx context.Context, query string, args ...interface{}) ([]*domain.ChatMessage, error) {
	msgs := []*domain.ChatMessage{}
	if err := conn(ctx, r.db).SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	return msgs, nil
}

func (r *ChatRepository) MarkRead(ctx context.Context, roomID, readerID uuid.UUID) (int, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE chat_messages SET is_read = TRUE WHERE room_id = $1 AND sender_id <> $2 AND NOT is_read`,
		roomID, readerID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark messages read")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ChatRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	query := `
		SELECT COUNT(*)
		FROM chat_messages m
		JOIN chat_rooms r ON r.id = m.room_id
		WHERE (r.buyer_id = $1 OR r.seller_id = $1) AND m.sender_id <> $1 AND NOT m.is_read
	`
	if err := conn(ctx, r.db).GetContext(ctx, &n, query, userID); err != nil {
		return 0, errors.Wrap(err, "failed to count unread messages")
	}
	return n, nil
}
