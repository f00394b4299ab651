package handler

import (
	"net/http"

	"github.com/google/uuid"

	"fairtix/internal/chat"
	"fairtix/internal/listing"
	"fairtix/internal/middleware"
	"fairtix/pkg/validator"
)

type ChatHandler struct {
	chat      *chat.Service
	listings  *listing.Service
	validator *validator.Validator
	logger    Logger
}

func NewChatHandler(chatSvc *chat.Service, listings *listing.Service, val *validator.Validator, log Logger) *ChatHandler {
	return &ChatHandler{chat: chatSvc, listings: listings, validator: val, logger: log}
}

type openRoomRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
}

// OpenRoom returns the caller's room for a listing, creating it on first use.
func (h *ChatHandler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := caller(w, r)
	if !ok {
		return
	}
	var req openRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	l, err := h.listings.Get(r.Context(), req.ListingID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	room, err := h.chat.OpenRoom(r.Context(), buyerID, l)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	rooms, err := h.chat.ListRoomsForUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	viewer, roomID, ok := h.viewer(w, r)
	if !ok {
		return
	}
	room, err := h.chat.GetRoom(r.Context(), roomID, viewer)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := caller(w, r)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req chat.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RoomID = roomID
	req.SenderID = senderID
	req.IPAddress = clientIP(r)
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	viewer, roomID, ok := h.viewer(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	messages, err := h.chat.ListMessages(r.Context(), roomID, viewer, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.chat.MarkRead(r.Context(), roomID, userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"marked_read": n})
}

func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.chat.Archive(r.Context(), roomID, userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// Block closes a room for good. Admin only.
func (h *ChatHandler) Block(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.chat.Block(r.Context(), roomID, &adminID, clientIP(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *ChatHandler) Flagged(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	messages, err := h.chat.FlaggedMessages(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ChatHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.chat.UnreadCount(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *ChatHandler) viewer(w http.ResponseWriter, r *http.Request) (chat.Viewer, uuid.UUID, bool) {
	userID, ok := caller(w, r)
	if !ok {
		return chat.Viewer{}, uuid.Nil, false
	}
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return chat.Viewer{}, uuid.Nil, false
	}
	return chat.Viewer{UserID: userID, Admin: middleware.IsAdmin(r.Context())}, roomID, true
}
