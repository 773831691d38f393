package chats

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/json"
	"github.com/parleychat/parley/internal/infrastructure/validate"
	"github.com/parleychat/parley/internal/presentation/utils"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type Handler struct {
	chatRepository    domain.ChatRepository
	messageRepository domain.MessageRepository
	userRepository    domain.UserRepository
}

func NewHandler(
	chatRepository domain.ChatRepository,
	messageRepository domain.MessageRepository,
	userRepository domain.UserRepository,
) *Handler {
	return &Handler{
		chatRepository:    chatRepository,
		messageRepository: messageRepository,
		userRepository:    userRepository,
	}
}

func (h *Handler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	participants := req.Participants
	if !lo.Contains(participants, userID) {
		participants = append(participants, userID)
	}

	// A private pair is unique; reuse the existing chat if one exists.
	if req.Type == domain.ChatTypePrivate && len(participants) == 2 {
		existing, err := h.chatRepository.FindPrivate(r.Context(), participants[0], participants[1])
		if err != nil && !errors.Is(err, domain.ErrChatNotFound) {
			log.Printf("Failed to look up private chat: %v", err)
			json.WriteInternalError(w, err)
			return
		}
		if existing != nil {
			json.Write(w, http.StatusOK, existing)
			return
		}
	}

	chat, err := domain.NewChat(req.Type, req.Name, userID, participants)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.chatRepository.Create(r.Context(), chat); err != nil {
		switch {
		case errors.Is(err, domain.ErrChatAlreadyExists):
			json.WriteError(w, http.StatusConflict, err, "Chat already exists")
		default:
			log.Printf("Repository error creating chat %s: %v", chat.ID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusCreated, chat)
}

func (h *Handler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	chats, err := h.chatRepository.ListByParticipant(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list chats for user %s: %v", userID, err)
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, chats)
}

func (h *Handler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	if chatID == "" {
		json.WriteValidationError(w, errors.New("chat ID is missing"))
		return
	}

	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	chat, err := h.chatRepository.GetByID(r.Context(), chatID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChatNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Chat not found")
		default:
			log.Printf("Failed to find chat %s: %v", chatID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	if !chat.HasParticipant(userID) {
		json.WriteUnauthorizedError(w, "You are not a participant of this chat")
		return
	}

	json.Write(w, http.StatusOK, chat)
}

// CreateMessageHandler persists a message. Persistence is the source
// of truth; clients relay the stored message over their socket for
// live fan-out after this returns.
func (h *Handler) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	if chatID == "" {
		json.WriteValidationError(w, errors.New("chat ID is missing"))
		return
	}

	var req createMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	chat, err := h.chatRepository.GetByID(r.Context(), chatID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChatNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Chat not found")
		default:
			log.Printf("Failed to find chat %s: %v", chatID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	if !chat.HasParticipant(userID) {
		json.WriteUnauthorizedError(w, "You are not a participant of this chat")
		return
	}

	sender, err := h.userRepository.GetByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			json.WriteUnauthorizedError(w, "Unknown user")
		default:
			log.Printf("Failed to load user %s: %v", userID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	message, err := domain.NewMessage(sender, chatID, req.Content, req.Type)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.messageRepository.Create(r.Context(), message); err != nil {
		log.Printf("Failed to persist message in chat %s: %v", chatID, err)
		json.WriteInternalError(w, err)
		return
	}

	if err := h.chatRepository.SetLastMessage(r.Context(), chatID, message.ID, message.CreatedAt); err != nil {
		log.Printf("Failed to update last message for chat %s: %v", chatID, err)
	}

	resp := createMessageResponse{
		ID:        message.ID,
		ChatID:    message.ChatID,
		Sender:    message.Sender,
		Content:   message.Content,
		Type:      message.Type,
		CreatedAt: message.CreatedAt,
	}
	json.Write(w, http.StatusCreated, resp)
}

// GetMessagesHandler pages through history. The store returns pages
// newest-first; the response reverses each page so clients render it
// in chronological order.
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	if chatID == "" {
		json.WriteValidationError(w, errors.New("chat ID is missing"))
		return
	}

	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	chat, err := h.chatRepository.GetByID(r.Context(), chatID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChatNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Chat not found")
		default:
			log.Printf("Failed to find chat %s: %v", chatID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	if !chat.HasParticipant(userID) {
		json.WriteUnauthorizedError(w, "You are not a participant of this chat")
		return
	}

	page := queryInt64(r, "page", 1)
	if page < 1 {
		page = 1
	}

	limit := queryInt64(r, "limit", defaultHistoryLimit)
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := h.messageRepository.GetByChatID(r.Context(), chatID, page, limit)
	if err != nil {
		log.Printf("Failed to load messages for chat %s: %v", chatID, err)
		json.WriteInternalError(w, err)
		return
	}

	resp := messagesResponse{
		ChatID:   chatID,
		Page:     page,
		Limit:    limit,
		Messages: lo.Reverse(messages),
	}
	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	if chatID == "" {
		json.WriteValidationError(w, errors.New("chat ID is missing"))
		return
	}

	messageID := chi.URLParam(r, "messageId")
	if messageID == "" {
		json.WriteValidationError(w, errors.New("message ID is missing"))
		return
	}

	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	chat, err := h.chatRepository.GetByID(r.Context(), chatID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChatNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Chat not found")
		default:
			log.Printf("Failed to find chat %s: %v", chatID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	if !chat.HasParticipant(userID) {
		json.WriteUnauthorizedError(w, "You are not a participant of this chat")
		return
	}

	if err := h.messageRepository.Delete(r.Context(), chatID, messageID); err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Message not found")
		default:
			log.Printf("Failed to delete message %s: %v", messageID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt64(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
