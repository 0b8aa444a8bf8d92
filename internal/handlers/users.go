package handlers

import (
	"errors"
	"net/http"
	"strings"

	"bizconnect/db"
	"bizconnect/models"
)

// Размер страницы каталога
const directoryLimit = 50

// GetUsersHandler: каталог поставщиков и агентств с фильтрами
func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.UserFilter{
		Type:     strings.TrimSpace(q.Get("type")),
		District: strings.TrimSpace(q.Get("district")),
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
		Limit:    directoryLimit,
	}

	users, err := h.Store.ListUsers(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserHandler частично обновляет профиль: пустые и отсутствующие поля
// сохраняют прежние значения
func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req models.ProfileRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	upd := req.Update()
	var user *models.User
	if upd.IsEmpty() {
		user, err = h.Store.GetUserByID(r.Context(), id)
	} else {
		user, err = h.Store.UpdateProfile(r.Context(), id, upd)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
