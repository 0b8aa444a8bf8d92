package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bizconnect/db"
	"bizconnect/internal/listing"
	"bizconnect/models"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

type opportunitySummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// opportunityFromRequest переносит поля запроса; пустые строки становятся NULL.
func opportunityFromRequest(req models.OpportunityRequest) models.Opportunity {
	o := models.Opportunity{
		ID:               strings.TrimSpace(req.ID),
		Title:            req.Title,
		ScopeSummary:     req.ScopeSummary,
		District:         req.District,
		DistrictName:     req.DistrictName,
		Category:         req.Category,
		CategoryName:     req.CategoryName,
		Subcategory:      optional(req.Subcategory),
		EstimatedValue:   optional(req.EstimatedValue),
		DueDate:          optional(req.DueDate),
		DueTime:          optional(req.DueTime),
		SubmissionMethod: optional(req.SubmissionMethod),
		Status:           req.Status,
		Duration:         optional(req.Duration),
		Requirements:     optional(req.Requirements),
		Certifications:   optional(req.Certifications),
		Experience:       optional(req.Experience),
	}
	if raw := bytes.TrimSpace(req.Attachments); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		o.Attachments = types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
	}
	if req.PostedBy != 0 {
		postedBy := int64(req.PostedBy)
		o.PostedBy = &postedBy
	}
	return o
}

// GetOpportunitiesHandler возвращает все возможности независимо от статуса
func (h *Handler) GetOpportunitiesHandler(w http.ResponseWriter, r *http.Request) {
	opps, err := h.Store.ListOpportunities(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opps)
}

// parseCriteria читает фильтр из query: district, category, dueWithin, keyword.
func parseCriteria(r *http.Request) (listing.Criteria, error) {
	q := r.URL.Query()
	c := listing.Criteria{
		District: strings.TrimSpace(q.Get("district")),
		Category: strings.TrimSpace(q.Get("category")),
		Keyword:  q.Get("keyword"),
	}
	if raw := strings.TrimSpace(q.Get("dueWithin")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return c, errors.New("dueWithin must be a whole number of days")
		}
		c.DueWithin = &days
	}
	return c, nil
}

// GetPublishedOpportunitiesHandler: витрина для поставщиков: только
// опубликованные, с фильтром и признаками сроков
func (h *Handler) GetPublishedOpportunitiesHandler(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opps, err := h.Store.ListPublishedOpportunities(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing.Build(opps, criteria, h.Now()))
}

func (h *Handler) GetAgencyOpportunitiesHandler(w http.ResponseWriter, r *http.Request) {
	agencyID, err := pathID(r, "agencyId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agency ID")
		return
	}

	opps, err := h.Store.ListAgencyOpportunities(r.Context(), agencyID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opps)
}

func (h *Handler) GetOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	opp, err := h.Store.GetOpportunity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

// CreateOpportunityHandler обрабатывает POST /opportunities
func (h *Handler) CreateOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.OpportunityRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	// автор должен существовать
	exists, err := h.Store.UserExists(r.Context(), int64(req.PostedBy))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !exists {
		writeError(w, http.StatusBadRequest, "Invalid postedBy User ID")
		return
	}

	opp := opportunityFromRequest(req)
	if opp.Status == "" {
		opp.Status = models.OpportunityPublished
	}

	if err := h.Store.CreateOpportunity(r.Context(), &opp); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			writeError(w, http.StatusConflict, "Opportunity ID already exists")
		case errors.Is(err, db.ErrInvalidReference):
			writeError(w, http.StatusBadRequest, "Invalid postedBy User ID")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.Log.Info("opportunity created", zap.String("id", opp.ID), zap.String("status", opp.Status))
	writeJSON(w, http.StatusCreated, opportunitySummary{ID: opp.ID, Title: opp.Title, Status: opp.Status})
}

// UpdateOpportunityHandler перезаписывает возможность целиком
func (h *Handler) UpdateOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.OpportunityRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	// автор при правке не меняется, поэтому postedBy не проверяем
	if err := h.Validate.StructPartial(req, "Title", "ScopeSummary", "Status"); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	opp := opportunityFromRequest(req)
	if err := h.Store.UpdateOpportunity(r.Context(), &opp); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opportunitySummary{ID: opp.ID, Title: opp.Title, Status: opp.Status})
}

type deletedOpportunityResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (h *Handler) DeleteOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteOpportunity(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedOpportunityResponse{Message: "Opportunity deleted successfully", ID: id})
}

// ApproveOpportunityHandler публикует возможность, ожидающую модерации
func (h *Handler) ApproveOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.SetOpportunityStatus(r.Context(), id, models.OpportunityPublished); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.Log.Info("opportunity approved", zap.String("id", id), zap.String("admin", adminEmail(r)))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": models.OpportunityPublished})
}

func (h *Handler) GetSavedOpportunitiesHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := pathID(r, "vendorId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vendor ID")
		return
	}

	opps, err := h.Store.ListSavedOpportunities(r.Context(), vendorID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opps)
}

// SaveOpportunityHandler добавляет закладку; повтор ничего не меняет
func (h *Handler) SaveOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Vendor ID and Opportunity ID are required")
		return
	}

	if _, err := h.Store.SaveOpportunity(r.Context(), int64(req.VendorID), req.OpportunityID); err != nil {
		if errors.Is(err, db.ErrInvalidReference) {
			writeError(w, http.StatusNotFound, "Vendor or opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Opportunity saved successfully"})
}

func (h *Handler) UnsaveOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Vendor ID and Opportunity ID are required")
		return
	}

	if _, err := h.Store.UnsaveOpportunity(r.Context(), int64(req.VendorID), req.OpportunityID); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Opportunity unsaved successfully"})
}

// RemoveSavedOpportunityHandler: удаление закладки по пути; 404, если её не было
func (h *Handler) RemoveSavedOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := pathID(r, "vendorId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vendor ID")
		return
	}

	removed, err := h.Store.UnsaveOpportunity(r.Context(), vendorID, chi.URLParam(r, "opportunityId"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Saved opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Opportunity removed from saved list"})
}
