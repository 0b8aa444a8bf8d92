package handlers

import (
	"errors"
	"net/http"

	"bizconnect/db"
	"bizconnect/models"

	"go.uber.org/zap"
)

type messageCreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: "+validationMessage(err))
		return
	}

	msg := &models.Message{
		SenderID:      int64(req.SenderID),
		ReceiverID:    int64(req.ReceiverID),
		OpportunityID: optional(req.OpportunityID),
		Subject:       optional(req.Subject),
		Body:          req.Body,
	}
	if err := h.Store.CreateMessage(r.Context(), msg); err != nil {
		if errors.Is(err, db.ErrInvalidReference) {
			writeError(w, http.StatusBadRequest, "Unknown sender, receiver or opportunity")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageCreatedResponse{ID: msg.ID, Message: "Message sent successfully"})
}

// GetUserMessagesHandler: входящие, либо отправленные при type=sent
func (h *Handler) GetUserMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	box := db.BoxInbox
	if r.URL.Query().Get("type") == db.BoxSent {
		box = db.BoxSent
	}

	msgs, err := h.Store.ListMessages(r.Context(), userID, box)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) MarkMessageReadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	if err := h.Store.MarkMessageRead(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Message not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Message marked as read"})
}

func (h *Handler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	if err := h.Store.DeleteMessage(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Message not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Message deleted"})
}

// ContactHandler принимает форму обратной связи. Письма не отправляются,
// обращение только пишется в лог.
func (h *Handler) ContactHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "Issue Report: " + req.IssueType
	}
	h.Log.Info("contact form submitted",
		zap.String("name", req.Name),
		zap.String("email", req.Email),
		zap.String("subject", subject),
		zap.String("page_url", req.PageURL),
		zap.String("body", req.Message),
	)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Contact form submitted successfully"})
}
