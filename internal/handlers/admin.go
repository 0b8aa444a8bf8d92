package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bizconnect/db"
	"bizconnect/models"

	"go.uber.org/zap"
)

// Сколько последних регистраций показывать на панели
const recentActivityLimit = 5

type dashboardStats struct {
	TotalVendors     int    `json:"totalVendors"`
	TotalAgencies    int    `json:"totalAgencies"`
	PendingApprovals int    `json:"pendingApprovals"`
	SiteUptime       string `json:"siteUptime"`
}

type activityItem struct {
	Type string `json:"type"`
	User string `json:"user"`
	Time string `json:"time"`
}

type dashboardResponse struct {
	Stats                dashboardStats              `json:"stats"`
	PendingOpportunities []models.PendingOpportunity `json:"pendingOpportunities"`
	RecentActivity       []activityItem              `json:"recentActivity"`
}

// relativeTime форматирует момент относительно now.
func relativeTime(t, now time.Time) string {
	hours := int(now.Sub(t).Hours())
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case hours/24 < 7:
		return fmt.Sprintf("%d days ago", hours/24)
	}
	return t.Format("1/2/2006")
}

func (h *Handler) AdminRootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Admin API is working"})
}

// AdminDashboardHandler: сводка для панели администратора
func (h *Handler) AdminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		resp dashboardResponse
		err  error
	)
	if resp.Stats.TotalVendors, err = h.Store.CountUsersByType(ctx, models.UserTypeVendor); err != nil {
		h.serverError(w, r, err)
		return
	}
	if resp.Stats.TotalAgencies, err = h.Store.CountUsersByType(ctx, models.UserTypeAgency); err != nil {
		h.serverError(w, r, err)
		return
	}
	if resp.Stats.PendingApprovals, err = h.Store.CountOpportunitiesByStatus(ctx, models.OpportunityPending); err != nil {
		h.serverError(w, r, err)
		return
	}
	resp.Stats.SiteUptime = time.Since(h.started).Round(time.Second).String()

	if resp.PendingOpportunities, err = h.Store.ListPendingOpportunities(ctx); err != nil {
		h.serverError(w, r, err)
		return
	}

	recent, err := h.Store.RecentUsers(ctx, recentActivityLimit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	now := h.Now()
	resp.RecentActivity = make([]activityItem, 0, len(recent))
	for _, u := range recent {
		kind := "agency_reg"
		if u.Type == models.UserTypeVendor {
			kind = "user_reg"
		}
		resp.RecentActivity = append(resp.RecentActivity, activityItem{
			Type: kind,
			User: u.Email,
			Time: relativeTime(u.CreatedAt, now),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context(), models.UserFilter{})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type adminUserCreatedResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

// AdminCreateUserHandler создаёт пользователя любого типа, включая администратора
func (h *Handler) AdminCreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AdminUserRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, ok := h.hashPassword(w, r, req.Password)
	if !ok {
		return
	}

	user := &models.User{
		Email:            req.Email,
		PasswordHash:     hash,
		Type:             req.Type,
		BusinessName:     optional(req.BusinessName),
		OrganizationName: optional(req.OrganizationName),
		Status:           req.Status,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.Log.Info("user created by admin",
		zap.Int64("user_id", user.ID),
		zap.String("type", user.Type),
		zap.String("admin", adminEmail(r)),
	)
	writeJSON(w, http.StatusCreated, adminUserCreatedResponse{ID: user.ID, Email: user.Email, Type: user.Type})
}

func (h *Handler) AdminGetUserHandler(w http.ResponseWriter, r *http.Request) {
	h.GetUserHandler(w, r)
}

// AdminUpdateUserHandler правит учётную запись; пароль, если передан, перехешируется
func (h *Handler) AdminUpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var upd models.AdminUserUpdate
	if !h.readJSON(w, r, &upd) {
		return
	}
	if err := h.Validate.Struct(upd); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if upd.Password != nil && *upd.Password != "" {
		hash, ok := h.hashPassword(w, r, *upd.Password)
		if !ok {
			return
		}
		upd.PasswordHash = &hash
	}

	if err := h.Store.AdminUpdateUser(r.Context(), id, upd); err != nil {
		switch {
		case errors.Is(err, db.ErrNoFields):
			writeError(w, http.StatusBadRequest, "No fields to update")
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.Log.Info("user updated by admin", zap.Int64("user_id", id), zap.String("admin", adminEmail(r)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id})
}

func (h *Handler) AdminDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.Store.DeleteUser(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, db.ErrInvalidReference):
			writeError(w, http.StatusConflict, "User has related records")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.Log.Info("user deleted by admin", zap.Int64("user_id", id), zap.String("admin", adminEmail(r)))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AdminSetUserStatusHandler блокирует или разблокирует пользователя
func (h *Handler) AdminSetUserStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req models.StatusRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Var(req.Status, "required,oneof=active suspended"); err != nil {
		writeError(w, http.StatusBadRequest, "status must be one of: active, suspended")
		return
	}

	if err := h.Store.UpdateUserStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.Log.Info("user status changed",
		zap.Int64("user_id", id),
		zap.String("status", req.Status),
		zap.String("admin", adminEmail(r)),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": req.Status})
}
