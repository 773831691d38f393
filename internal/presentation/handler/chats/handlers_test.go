package chats

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/presentation/utils"
)

type fakeChatRepository struct {
	chats map[string]*domain.Chat
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{chats: make(map[string]*domain.Chat)}
}

func (r *fakeChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if _, ok := r.chats[chat.ID]; ok {
		return domain.ErrChatAlreadyExists
	}
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	chat, ok := r.chats[id]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	return chat, nil
}

func (r *fakeChatRepository) FindPrivate(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	for _, chat := range r.chats {
		if chat.Type == domain.ChatTypePrivate && chat.HasParticipant(userA) && chat.HasParticipant(userB) {
			return chat, nil
		}
	}
	return nil, domain.ErrChatNotFound
}

func (r *fakeChatRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	for _, chat := range r.chats {
		if chat.HasParticipant(userID) {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (r *fakeChatRepository) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	chat, ok := r.chats[chatID]
	if !ok {
		return domain.ErrChatNotFound
	}
	chat.LastMessageID = messageID
	chat.UpdatedAt = at
	return nil
}

type fakeMessageRepository struct {
	messages []domain.Message
}

func (r *fakeMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeMessageRepository) GetByChatID(ctx context.Context, chatID string, page, limit int64) ([]domain.Message, error) {
	var all []domain.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			all = append(all, m)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := (page - 1) * limit
	if start >= int64(len(all)) {
		return nil, nil
	}
	end := start + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end], nil
}

func (r *fakeMessageRepository) Delete(ctx context.Context, chatID, messageID string) error {
	for i, m := range r.messages {
		if m.ChatID == chatID && m.ID == messageID {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return domain.ErrMessageNotFound
}

type fakeUserRepository struct {
	users map[string]*domain.User
}

func newFakeUserRepository(users ...*domain.User) *fakeUserRepository {
	r := &fakeUserRepository{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepository) List(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

type fixture struct {
	handler  *Handler
	chats    *fakeChatRepository
	messages *fakeMessageRepository
	users    *fakeUserRepository
	router   chi.Router
}

func newFixture() *fixture {
	chats := newFakeChatRepository()
	messages := &fakeMessageRepository{}
	users := newFakeUserRepository(
		&domain.User{ID: "u1", Username: "ana"},
		&domain.User{ID: "u2", Username: "bea"},
	)

	handler := NewHandler(chats, messages, users)

	r := chi.NewRouter()
	r.Route("/api/chats", func(r chi.Router) {
		r.Post("/", handler.CreateChatHandler)
		r.Get("/", handler.ListChatsHandler)
		r.Get("/{chatId}", handler.GetChatHandler)
		r.Post("/{chatId}/messages", handler.CreateMessageHandler)
		r.Get("/{chatId}/messages", handler.GetMessagesHandler)
		r.Delete("/{chatId}/messages/{messageId}", handler.DeleteMessageHandler)
	})

	return &fixture{
		handler:  handler,
		chats:    chats,
		messages: messages,
		users:    users,
		router:   r,
	}
}

func (f *fixture) seedChat(t *testing.T, participants ...string) *domain.Chat {
	t.Helper()

	chat, err := domain.NewChat(domain.ChatTypeGroup, "general", participants[0], participants)
	require.NoError(t, err)
	require.NoError(t, f.chats.Create(context.Background(), chat))
	return chat
}

func (f *fixture) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(utils.HeaderUserID, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateMessage_RequiresIdentity(t *testing.T) {
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	rec := f.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", "", map[string]string{"content": "hi"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMessage_UnknownChat(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/chats/nope/messages", "u1", map[string]string{"content": "hi"})

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMessage_RejectsNonParticipant(t *testing.T) {
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	f.users.users["u3"] = &domain.User{ID: "u3", Username: "cho"}
	rec := f.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", "u3", map[string]string{"content": "hi"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMessage_PersistsAndUpdatesChat(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	rec := f.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", "u1", map[string]string{"content": "hello there"})

	req.Equal(http.StatusCreated, rec.Code)

	var resp createMessageResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.NotEmpty(resp.ID)
	req.Equal(chat.ID, resp.ChatID)
	req.Equal("hello there", resp.Content)
	req.Equal(domain.MessageTypeText, resp.Type)
	req.Equal("u1", resp.Sender.ID)

	req.Len(f.messages.messages, 1)
	req.Equal(resp.ID, f.chats.chats[chat.ID].LastMessageID)
}

func TestCreateMessage_RejectsEmptyContent(t *testing.T) {
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	rec := f.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", "u1", map[string]string{"content": ""})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessages_ReturnsChronologicalPage(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	base := time.Now().UTC().Add(-time.Hour)
	sender := &domain.User{ID: "u1", Username: "ana"}
	for i := 0; i < 5; i++ {
		f.messages.messages = append(f.messages.messages, domain.Message{
			ID:        string(rune('a' + i)),
			ChatID:    chat.ID,
			Sender:    sender,
			Content:   "msg",
			Type:      domain.MessageTypeText,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	rec := f.do(http.MethodGet, "/api/chats/"+chat.ID+"/messages?page=1&limit=3", "u1", nil)
	req.Equal(http.StatusOK, rec.Code)

	var resp messagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Len(resp.Messages, 3)

	// The newest page, oldest entry first within the page.
	req.Equal("c", resp.Messages[0].ID)
	req.Equal("d", resp.Messages[1].ID)
	req.Equal("e", resp.Messages[2].ID)
}

func TestGetMessages_RejectsNonParticipant(t *testing.T) {
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	rec := f.do(http.MethodGet, "/api/chats/"+chat.ID+"/messages", "u3", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateChat_ReusesExistingPrivateChat(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	body := map[string]any{
		"type":         domain.ChatTypePrivate,
		"participants": []string{"u1", "u2"},
	}

	first := f.do(http.MethodPost, "/api/chats", "u1", body)
	req.Equal(http.StatusCreated, first.Code)

	second := f.do(http.MethodPost, "/api/chats", "u1", body)
	req.Equal(http.StatusOK, second.Code)

	var a, b domain.Chat
	req.NoError(json.Unmarshal(first.Body.Bytes(), &a))
	req.NoError(json.Unmarshal(second.Body.Bytes(), &b))
	req.Equal(a.ID, b.ID)
}

func TestCreateChat_AddsCreatorToParticipants(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/chats", "u1", map[string]any{
		"type":         domain.ChatTypeGroup,
		"name":         "general",
		"participants": []string{"u2", "u3"},
	})
	req.Equal(http.StatusCreated, rec.Code)

	var chat domain.Chat
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &chat))
	req.True(chat.HasParticipant("u1"))
	req.Equal("u1", chat.AdminID)
}

func TestDeleteMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	chat := f.seedChat(t, "u1", "u2")

	f.messages.messages = append(f.messages.messages, domain.Message{
		ID:     "m1",
		ChatID: chat.ID,
	})

	rec := f.do(http.MethodDelete, "/api/chats/"+chat.ID+"/messages/m1", "u1", nil)
	req.Equal(http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodDelete, "/api/chats/"+chat.ID+"/messages/m1", "u1", nil)
	req.Equal(http.StatusNotFound, rec.Code)
}
