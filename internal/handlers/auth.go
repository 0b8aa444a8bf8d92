package handlers

import (
	"errors"
	"net/http"
	"strings"

	"bizconnect/db"
	"bizconnect/internal/auth"
	"bizconnect/internal/metrics"
	"bizconnect/models"

	"go.uber.org/zap"
)

type registerResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// loginResponse: профиль без хеша пароля; администратор получает токен.
type loginResponse struct {
	*models.User
	AdminToken string `json:"adminToken,omitempty"`
}

// RegisterHandler обрабатывает POST /auth/register
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := h.Validate.Struct(req); err != nil {
		metrics.RecordAuth("register", "invalid")
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, ok := h.hashPassword(w, r, req.Password)
	if !ok {
		return
	}

	user := &models.User{
		Email:               req.Email,
		PasswordHash:        hash,
		Type:                req.Type,
		BusinessName:        optional(req.BusinessName),
		OrganizationName:    optional(req.OrganizationName),
		ContactName:         optional(req.ContactName),
		Phone:               optional(req.Phone),
		EIN:                 optional(req.EIN),
		CertificationNumber: optional(req.CertificationNumber),
		Address:             optional(req.Address),
		City:                optional(req.City),
		Zip:                 optional(req.Zip),
		Website:             optional(req.Website),
		Status:              models.UserStatusActive,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			metrics.RecordAuth("register", "duplicate")
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		h.serverError(w, r, err)
		return
	}

	metrics.RecordAuth("register", "success")
	h.Log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("type", user.Type))
	writeJSON(w, http.StatusCreated, registerResponse{Success: true, User: user})
}

// LoginHandler обрабатывает POST /auth/login
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.serverError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		metrics.RecordAuth("login", "failure")
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if user.Status == models.UserStatusSuspended {
		metrics.RecordAuth("login", "suspended")
		writeError(w, http.StatusForbidden, "Account suspended")
		return
	}

	resp := loginResponse{User: user}
	if user.Type == models.UserTypeAdmin {
		token, err := h.Tokens.Issue(user.ID, user.Email)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		resp.AdminToken = token
	}

	metrics.RecordAuth("login", "success")
	writeJSON(w, http.StatusOK, resp)
}
