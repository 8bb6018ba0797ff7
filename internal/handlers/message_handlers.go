package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"direct-chat/internal/models"
	"direct-chat/internal/services"
	"direct-chat/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
}

func NewMessageHandlers(messageService *services.MessageService) *MessageHandlers {
	return &MessageHandlers{messageService: messageService}
}

func (h *MessageHandlers) Send(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.ID, r.PathValue("peerId"), &req)
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandlers) History(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			http.Error(w, "invalid after cursor", http.StatusBadRequest)
			return
		}
		after = v
	}

	messages, err := h.messageService.History(r.Context(), user.ID, r.PathValue("peerId"), after)
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.HistoryResponse{Messages: messages})
}

func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrSelfMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrUnknownRecipient):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error("Message error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
