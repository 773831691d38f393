package users

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/json"
	"github.com/parleychat/parley/internal/infrastructure/validate"
	"github.com/parleychat/parley/internal/presentation/utils"
)

type Handler struct {
	userRepository domain.UserRepository
}

func NewHandler(userRepository domain.UserRepository) *Handler {
	return &Handler{userRepository: userRepository}
}

// UpsertUserHandler registers or refreshes the caller's profile. The
// profile is what presence announces and what messages embed as the
// sender.
func (h *Handler) UpsertUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)
	if userID == "" {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
		return
	}

	var req upsertUserRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	user := &domain.User{
		ID:       userID,
		Username: req.Username,
		Avatar:   req.Avatar,
		Status:   req.Status,
	}

	if err := h.userRepository.Upsert(r.Context(), user); err != nil {
		log.Printf("Failed to upsert user %s: %v", userID, err)
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, user)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		json.WriteValidationError(w, errors.New("user ID is missing"))
		return
	}

	user, err := h.userRepository.GetByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			json.WriteError(w, http.StatusNotFound, err, "User not found")
		default:
			log.Printf("Failed to load user %s: %v", userID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusOK, user)
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepository.List(r.Context())
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, users)
}
