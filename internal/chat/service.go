// Package chat manages buyer/seller rooms and moderated messages.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
	"fairtix/internal/moderation"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	// FindOrCreateRoom returns the existing room for the listing and buyer, or
	// stores room. The bool reports whether room was created.
	FindOrCreateRoom(ctx context.Context, room *domain.ChatRoom) (*domain.ChatRoom, bool, error)
	FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error)
	UpdateRoom(ctx context.Context, room *domain.ChatRoom) error
	ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error)
	CreateMessage(ctx context.Context, m *domain.ChatMessage) error
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error)
	FlaggedMessages(ctx context.Context, limit, offset int) ([]*domain.ChatMessage, error)
	MarkRead(ctx context.Context, roomID, readerID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type Moderator interface {
	Evaluate(text string) moderation.Result
}

type AuditService interface {
	Record(ctx context.Context, req audit.RecordRequest) (*domain.AuditLogEntry, error)
}

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// RejectArchived makes ARCHIVED rooms refuse new messages like BLOCKED ones.
	RejectArchived bool
}

type Service struct {
	repo      Repository
	moderator Moderator
	audit     AuditService
	tx        TxManager
	cfg       Config
	logger    logger.Logger
}

func NewService(repo Repository, moderator Moderator, auditSvc AuditService, tx TxManager, cfg Config, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		moderator: moderator,
		audit:     auditSvc,
		tx:        tx,
		cfg:       cfg,
		logger:    log,
	}
}

// Viewer is the caller reading a room. Admins may read any room.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

func (v Viewer) canRead(room *domain.ChatRoom) bool {
	return v.Admin || room.IsParticipant(v.UserID)
}

// OpenRoom returns the buyer's room for the listing, creating it on first use.
// The listing is resolved by the caller so the seller role comes from it.
func (s *Service) OpenRoom(ctx context.Context, buyerID uuid.UUID, listing *domain.Listing) (*domain.ChatRoom, error) {
	if listing == nil {
		return nil, pkgerrors.ErrListingNotFound
	}
	if listing.SellerID == buyerID {
		return nil, pkgerrors.Validation("cannot open a chat with yourself")
	}

	now := time.Now().UTC()
	room, created, err := s.repo.FindOrCreateRoom(ctx, &domain.ChatRoom{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		Status:    domain.ChatRoomStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open chat room")
	}
	if created {
		s.logger.Info("Chat room opened", map[string]interface{}{
			"room_id":    room.ID,
			"listing_id": room.ListingID,
			"buyer_id":   room.BuyerID,
		})
	}
	return room, nil
}

type SendRequest struct {
	RoomID    uuid.UUID          `json:"-"`
	SenderID  uuid.UUID          `json:"-"`
	Text      string             `json:"text" validate:"required,max=4000"`
	Type      domain.MessageType `json:"type" validate:"message_type"`
	IPAddress *string            `json:"-"`
}

// SendMessage stores a moderated message. A flagged message is still
// delivered; the finding goes to the audit log.
func (s *Service) SendMessage(ctx context.Context, req *SendRequest) (*domain.ChatMessage, error) {
	room, err := s.repo.FindRoomByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	switch {
	case room.Status == domain.ChatRoomStatusBlocked:
		return nil, pkgerrors.State("chat room is %s", room.Status)
	case room.Status == domain.ChatRoomStatusArchived && s.cfg.RejectArchived:
		return nil, pkgerrors.State("chat room is %s", room.Status)
	}
	if !room.IsParticipant(req.SenderID) {
		return nil, pkgerrors.Permission("you are not a participant of this chat")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, pkgerrors.Validation("message text is required")
	}
	msgType := domain.MessageType(strings.ToUpper(string(req.Type)))
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, pkgerrors.Validation("unknown message type %q", req.Type)
	}

	verdict := s.moderator.Evaluate(text)
	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		RoomID:    room.ID,
		SenderID:  req.SenderID,
		Text:      text,
		Type:      msgType,
		IsFlagged: verdict.Flagged,
		SentAt:    time.Now().UTC(),
	}
	if verdict.Flagged {
		reason := verdict.Reason
		msg.FlagReason = &reason
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateMessage(ctx, msg); err != nil {
			return pkgerrors.Wrap(err, "failed to store message")
		}
		if !verdict.Flagged {
			return nil
		}
		_, err := s.audit.Record(ctx, audit.RecordRequest{
			ActorID:   &req.SenderID,
			Action:    audit.ActionChatMessageFlagged,
			IPAddress: req.IPAddress,
			Metadata: domain.Metadata{
				"room_id":    room.ID.String(),
				"message_id": msg.ID.String(),
				"reason":     verdict.Reason,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if verdict.Flagged {
		s.logger.Warn("Chat message flagged", map[string]interface{}{
			"room_id":    room.ID,
			"message_id": msg.ID,
			"sender_id":  req.SenderID,
			"reason":     verdict.Reason,
		})
	}
	return msg, nil
}

// Archive closes an OPEN room at the request of either participant.
func (s *Service) Archive(ctx context.Context, roomID, actorID uuid.UUID) (*domain.ChatRoom, error) {
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(actorID) {
		return nil, pkgerrors.Permission("you are not a participant of this chat")
	}
	if room.Status != domain.ChatRoomStatusOpen {
		return nil, pkgerrors.State("only open rooms can be archived, room is %s", room.Status)
	}
	return s.setStatus(ctx, room, domain.ChatRoomStatusArchived)
}

// Block is the administrative stop; a blocked room rejects every send.
func (s *Service) Block(ctx context.Context, roomID uuid.UUID, adminID *uuid.UUID, ip *string) (*domain.ChatRoom, error) {
	var out *domain.ChatRoom
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		room, err := s.repo.FindRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status == domain.ChatRoomStatusBlocked {
			return pkgerrors.State("chat room is already %s", room.Status)
		}
		if out, err = s.setStatus(ctx, room, domain.ChatRoomStatusBlocked); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, audit.RecordRequest{
			ActorID:   adminID,
			Action:    audit.ActionChatRoomBlocked,
			IPAddress: ip,
			Metadata:  domain.Metadata{"room_id": room.ID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) setStatus(ctx context.Context, room *domain.ChatRoom, status domain.ChatRoomStatus) (*domain.ChatRoom, error) {
	from := room.Status
	room.Status = status
	room.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to update chat room")
	}
	s.logger.Info("Chat room status changed", map[string]interface{}{"room_id": room.ID, "from": from, "to": status})
	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID uuid.UUID, viewer Viewer) (*domain.ChatRoom, error) {
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !viewer.canRead(room) {
		return nil, pkgerrors.Permission("you are not a participant of this chat")
	}
	return room, nil
}

func (s *Service) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error) {
	return s.repo.ListRoomsForUser(ctx, userID)
}

// ListMessages returns the room's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID uuid.UUID, viewer Viewer, limit, offset int) ([]*domain.ChatMessage, error) {
	if _, err := s.GetRoom(ctx, roomID, viewer); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.repo.ListMessages(ctx, roomID, limit, max(offset, 0))
}

// MarkRead marks the messages userID received in the room as read and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	if _, err := s.GetRoom(ctx, roomID, Viewer{UserID: userID}); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, roomID, userID)
}

func (s *Service) FlaggedMessages(ctx context.Context, limit, offset int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.repo.FlaggedMessages(ctx, limit, max(offset, 0))
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}
