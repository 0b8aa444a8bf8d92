package handlers

import (
	"errors"
	"net/http"

	"bizconnect/db"
	"bizconnect/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const applicationStatuses = "oneof=pending reviewed awarded rejected"

type applicationCreatedResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// GetApplicationsHandler: заявки с фильтрами vendorId и agencyId
func (h *Handler) GetApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := queryID(r, "vendorId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agencyID, err := queryID(r, "agencyId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	apps, err := h.Store.ListApplications(r.Context(), models.ApplicationFilter{VendorID: vendorID, AgencyID: agencyID})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) GetApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	app, err := h.Store.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Application not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// CreateApplicationHandler регистрирует интерес поставщика к возможности.
// Агентство берётся из автора возможности.
func (h *Handler) CreateApplicationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ApplicationRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: "+validationMessage(err))
		return
	}

	opp, err := h.Store.GetOpportunity(r.Context(), req.OpportunityID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Opportunity not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	app := &models.Application{
		OpportunityID: opp.ID,
		VendorID:      int64(req.VendorID),
		AgencyID:      opp.PostedBy,
		Status:        models.ApplicationPending,
		Notes:         optional(req.Notes),
	}
	if err := h.Store.CreateApplication(r.Context(), app); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			writeError(w, http.StatusConflict, "Already applied")
		case errors.Is(err, db.ErrInvalidReference):
			writeError(w, http.StatusBadRequest, "Invalid vendor ID")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.Log.Info("application submitted",
		zap.Int64("id", app.ID),
		zap.String("opportunity_id", app.OpportunityID),
		zap.Int64("vendor_id", app.VendorID),
	)
	writeJSON(w, http.StatusCreated, applicationCreatedResponse{Message: "Interest submitted successfully", ID: app.ID})
}

// GetOpportunityApplicantsHandler: вид для агентства: кто откликнулся
func (h *Handler) GetOpportunityApplicantsHandler(w http.ResponseWriter, r *http.Request) {
	applicants, err := h.Store.ListOpportunityApplicants(r.Context(), chi.URLParam(r, "opportunityId"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applicants)
}

func (h *Handler) GetVendorApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := pathID(r, "vendorId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vendor ID")
		return
	}

	apps, err := h.Store.ListApplications(r.Context(), models.ApplicationFilter{VendorID: vendorID})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) UpdateApplicationStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	var req models.StatusRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.Validate.Var(req.Status, "required,"+applicationStatuses); err != nil {
		writeError(w, http.StatusBadRequest, "status must be one of: pending, reviewed, awarded, rejected")
		return
	}

	if err := h.Store.UpdateApplicationStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Application not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": req.Status})
}

// DeleteApplicationHandler: отзыв заявки
func (h *Handler) DeleteApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	if err := h.Store.DeleteApplication(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Application not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Application withdrawn", "id": id})
}
