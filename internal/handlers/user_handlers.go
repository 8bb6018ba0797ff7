package handlers

import (
	"net/http"

	"direct-chat/internal/services"
	"direct-chat/pkg/logger"
)

type UserHandlers struct {
	userService *services.UserService
}

func NewUserHandlers(userService *services.UserService) *UserHandlers {
	return &UserHandlers{userService: userService}
}

func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	roster, err := h.userService.Roster(r.Context(), user.ID)
	if err != nil {
		logger.Error("List users error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}
