package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the narrow view of a marketplace account the core needs.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	UserType  UserType  `json:"user_type" db:"user_type"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeAdmin      UserType = "admin"
)

// ReferencePrice is the authoritative face value for a category of ticket.
// Immutable once created.
type ReferencePrice struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CatalogItemID uuid.UUID       `json:"catalog_item_id" db:"catalog_item_id"`
	Category      string          `json:"category" db:"category"`
	FaceValue     decimal.Decimal `json:"face_value" db:"face_value"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Listing is a seller's offer of one ticket.
type Listing struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	SellerID         uuid.UUID       `json:"seller_id" db:"seller_id"`
	ReferencePriceID uuid.UUID       `json:"reference_price_id" db:"reference_price_id"`
	AskedPrice       decimal.Decimal `json:"asked_price" db:"asked_price"`
	Status           ListingStatus   `json:"status" db:"status"`
	ProofRefs        StringList      `json:"proof_refs" db:"proof_refs"`
	Description      string          `json:"description" db:"description"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusReserved  ListingStatus = "RESERVED"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusCancelled ListingStatus = "CANCELLED"
)

var listingTransitions = []struct {
	From ListingStatus
	To   ListingStatus
}{
	{ListingStatusActive, ListingStatusReserved},
	{ListingStatusReserved, ListingStatusSold},
	{ListingStatusReserved, ListingStatusActive},
	{ListingStatusActive, ListingStatusCancelled},
	{ListingStatusReserved, ListingStatusCancelled},
}

// CanTransition reports whether a listing may move from s to next.
func (s ListingStatus) CanTransition(next ListingStatus) bool {
	for _, t := range listingTransitions {
		if t.From == s && t.To == next {
			return true
		}
	}
	return false
}

// Order is the money-custody record for one purchase attempt of a listing.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	BuyerID          uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	ListingID        uuid.UUID       `json:"listing_id" db:"listing_id"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	PaymentStatus    PaymentStatus   `json:"payment_status" db:"payment_status"`
	EscrowStatus     EscrowStatus    `json:"escrow_status" db:"escrow_status"`
	PaymentMethod    string          `json:"payment_method" db:"payment_method"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type EscrowStatus string

const (
	EscrowStatusHeld             EscrowStatus = "HELD"
	EscrowStatusReleasedToSeller EscrowStatus = "RELEASED_TO_SELLER"
	EscrowStatusDispute          EscrowStatus = "DISPUTE"
)

type ChatRoom struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	ListingID uuid.UUID      `json:"listing_id" db:"listing_id"`
	BuyerID   uuid.UUID      `json:"buyer_id" db:"buyer_id"`
	SellerID  uuid.UUID      `json:"seller_id" db:"seller_id"`
	Status    ChatRoomStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// IsParticipant reports whether userID is the buyer or seller of the room.
func (r *ChatRoom) IsParticipant(userID uuid.UUID) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

type ChatRoomStatus string

const (
	ChatRoomStatusOpen     ChatRoomStatus = "OPEN"
	ChatRoomStatusArchived ChatRoomStatus = "ARCHIVED"
	ChatRoomStatusBlocked  ChatRoomStatus = "BLOCKED"
)

// ChatMessage is immutable once stored except for IsRead.
type ChatMessage struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	RoomID     uuid.UUID   `json:"room_id" db:"room_id"`
	SenderID   uuid.UUID   `json:"sender_id" db:"sender_id"`
	Text       string      `json:"text" db:"text"`
	Type       MessageType `json:"type" db:"type"`
	IsRead     bool        `json:"is_read" db:"is_read"`
	IsFlagged  bool        `json:"is_flagged" db:"is_flagged"`
	FlagReason *string     `json:"flag_reason,omitempty" db:"flag_reason"`
	SentAt     time.Time   `json:"sent_at" db:"sent_at"`
}

type MessageType string

const (
	MessageTypeText        MessageType = "TEXT"
	MessageTypeImage       MessageType = "IMAGE"
	MessageTypeSystemAlert MessageType = "SYSTEM_ALERT"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystemAlert:
		return true
	}
	return false
}

type Dispute struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	OrderID        *uuid.UUID    `json:"order_id,omitempty" db:"order_id"`
	ReporterID     uuid.UUID     `json:"reporter_id" db:"reporter_id"`
	ReportedUserID uuid.UUID     `json:"reported_user_id" db:"reported_user_id"`
	Reason         string        `json:"reason" db:"reason"`
	Status         DisputeStatus `json:"status" db:"status"`
	AdminNotes     *string       `json:"admin_notes,omitempty" db:"admin_notes"`
	Upheld         bool          `json:"upheld" db:"upheld"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
)

// AuditLogEntry is an append-only record of a sensitive action.
type AuditLogEntry struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	Action    string     `json:"action" db:"action"`
	IPAddress *string    `json:"ip_address,omitempty" db:"ip_address"`
	Metadata  Metadata   `json:"metadata" db:"metadata"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ReputationEntry records one adjustment of a user's score.
type ReputationEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Delta     decimal.Decimal `json:"delta" db:"delta"`
	Reason    string          `json:"reason" db:"reason"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("type assertion to []byte failed")
}

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("type assertion to []byte failed")
}
