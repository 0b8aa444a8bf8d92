package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bizconnect/db"
	"bizconnect/internal/auth"
	"bizconnect/internal/handlers"
	"bizconnect/internal/handlers/testutils"
	"bizconnect/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ handlers.StorageInterface = (*db.Storage)(nil)
	_ handlers.StorageInterface = (*testutils.MemStore)(nil)
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestHandler(t *testing.T) (*handlers.Handler, *testutils.MemStore) {
	t.Helper()
	store := testutils.NewMemStore()
	h := handlers.NewHandler(store, auth.NewTokenIssuer("test-secret", time.Hour), handlers.Config{
		UploadDir:      t.TempDir(),
		AuthRatePerSec: 1000,
		AuthBurst:      1000,
	}, zap.NewNop())
	h.Now = func() time.Time { return testNow }
	return h, store
}

func seedUser(t *testing.T, store *testutils.MemStore, email, password, userType string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Email: email, PasswordHash: hash, Type: userType}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedOpportunity(t *testing.T, store *testutils.MemStore, id, status, dueDate string) {
	t.Helper()
	o := &models.Opportunity{
		ID: id, Title: "Opportunity " + id, ScopeSummary: "Scope of " + id,
		District: "04", DistrictName: "D04 - Bay Area / Oakland",
		Category: "services", CategoryName: "Support Services",
		Status: status,
	}
	if dueDate != "" {
		o.DueDate = &dueDate
	}
	require.NoError(t, store.CreateOpportunity(context.Background(), o))
}

func adminToken(t *testing.T, router http.Handler, store *testutils.MemStore) string {
	t.Helper()
	seedUser(t, store, "root@admin.gov", "rootpass", models.UserTypeAdmin)
	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"root@admin.gov","password":"rootpass"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		AdminToken string `json:"adminToken"`
	}
	testutils.DecodeJSON(t, rr, &resp)
	require.NotEmpty(t, resp.AdminToken)
	return resp.AdminToken
}

func TestHealthDualMount(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Routes()

	for _, path := range []string{"/health", "/api/health"} {
		rr := testutils.Do(t, router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)

		var resp struct {
			Status   string `json:"status"`
			Database struct {
				Status string `json:"status"`
			} `json:"database"`
		}
		testutils.DecodeJSON(t, rr, &resp)
		require.Equal(t, "ok", resp.Status)
		require.Equal(t, "ok", resp.Database.Status)
	}
}

func TestHealthReportsDatabaseError(t *testing.T) {
	h, store := newTestHandler(t)
	store.PingErr = errors.New("connection refused")

	rr := testutils.Do(t, h.Routes(), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"error"`)
	require.Contains(t, rr.Body.String(), "connection refused")
}

func TestCreateOpportunityHandler(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	for i := 1; i <= 7; i++ {
		seedUser(t, store, "agency"+string(rune('0'+i))+"@ca.gov", "secret1", models.UserTypeAgency)
	}

	body := `{"id":"CAL-5001","title":"Test","scopeSummary":"` + strings.Repeat("x", 100) + `","postedBy":7}`
	rr := testutils.Do(t, router, http.MethodPost, "/api/opportunities", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":"CAL-5001","title":"Test","status":"published"}`, rr.Body.String())

	opp, err := store.GetOpportunity(context.Background(), "CAL-5001")
	require.NoError(t, err)
	require.Equal(t, int64(7), *opp.PostedBy)

	// повторный id
	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities", body)
	require.Equal(t, http.StatusConflict, rr.Code)

	// postedBy строкой, маршрут без префикса
	rr = testutils.Do(t, router, http.MethodPost, "/opportunities",
		`{"id":"CAL-5002","title":"Other","scope_summary":"y","posted_by":"3","status":"pending"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":"CAL-5002","title":"Other","status":"pending"}`, rr.Body.String())
}

func TestCreateOpportunityValidation(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	seedUser(t, store, "agency@ca.gov", "secret1", models.UserTypeAgency)

	rr := testutils.Do(t, router, http.MethodPost, "/api/opportunities", `{"id":"CAL-1","title":"T","postedBy":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "scopeSummary")

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities", `{"id":"CAL-1","title":"T","scopeSummary":"s","postedBy":99}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Invalid postedBy User ID")

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities", `{"id":"CAL-1",`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateAndDeleteOpportunity(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	seedOpportunity(t, store, "CAL-10", models.OpportunityPending, "")

	rr := testutils.Do(t, router, http.MethodPut, "/api/opportunities/CAL-10", `{"title":"Renamed","scopeSummary":"New scope"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":"CAL-10","title":"Renamed","status":"pending"}`, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodPut, "/api/opportunities/CAL-404", `{"title":"x","scopeSummary":"y"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutils.Do(t, router, http.MethodDelete, "/api/opportunities/CAL-10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"message":"Opportunity deleted successfully","id":"CAL-10"}`, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodDelete, "/api/opportunities/CAL-10", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetOpportunityHandlerNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/CAL-404", nil)
	req = testutils.WithURLParams(req, "id", "CAL-404")
	rr := httptest.NewRecorder()

	h.GetOpportunityHandler(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"Opportunity not found"}`, rr.Body.String())
}

func TestPublishedListingExcludesPending(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	seedOpportunity(t, store, "opp-pub", models.OpportunityPublished, "2026-03-05")
	seedOpportunity(t, store, "opp-pending", models.OpportunityPending, "2026-03-05")

	rr := testutils.Do(t, router, http.MethodGet, "/api/opportunities/published", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var published []map[string]interface{}
	testutils.DecodeJSON(t, rr, &published)
	require.Len(t, published, 1)
	require.Equal(t, "opp-pub", published[0]["id"])

	rr = testutils.Do(t, router, http.MethodGet, "/api/opportunities", "")
	var all []models.Opportunity
	testutils.DecodeJSON(t, rr, &all)
	require.Len(t, all, 2)
}

func TestPublishedListingFiltersAndBadges(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	seedOpportunity(t, store, "opp-soon", models.OpportunityPublished, "2026-03-05")
	seedOpportunity(t, store, "opp-later", models.OpportunityPublished, "2026-06-01")
	seedOpportunity(t, store, "opp-tbd", models.OpportunityPublished, "TBD")

	rr := testutils.Do(t, router, http.MethodGet, "/api/opportunities/published", "")
	var items []struct {
		ID           string `json:"id"`
		DueDateLabel string `json:"dueDateLabel"`
		DaysUntilDue *int   `json:"daysUntilDue"`
		DueSoon      bool   `json:"dueSoon"`
	}
	testutils.DecodeJSON(t, rr, &items)
	require.Len(t, items, 3)
	byID := map[string]int{}
	for i, it := range items {
		byID[it.ID] = i
	}
	require.Equal(t, "Not specified", items[byID["opp-tbd"]].DueDateLabel)
	require.Nil(t, items[byID["opp-tbd"]].DaysUntilDue)
	require.True(t, items[byID["opp-soon"]].DueSoon)
	require.Equal(t, "March 5, 2026", items[byID["opp-soon"]].DueDateLabel)

	rr = testutils.Do(t, router, http.MethodGet, "/api/opportunities/published?dueWithin=30", "")
	items = nil
	testutils.DecodeJSON(t, rr, &items)
	require.Len(t, items, 1)
	require.Equal(t, "opp-soon", items[0].ID)

	rr = testutils.Do(t, router, http.MethodGet, "/api/opportunities/published?keyword=SCOPE%20OF%20OPP-LATER", "")
	items = nil
	testutils.DecodeJSON(t, rr, &items)
	require.Len(t, items, 1)
	require.Equal(t, "opp-later", items[0].ID)

	rr = testutils.Do(t, router, http.MethodGet, "/api/opportunities/published?dueWithin=soon", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterHandler(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Routes()
	body := `{"email":"acme@example.com","password":"secret1","type":"vendor","businessName":"Acme","zip_code":"95814"}`

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/register", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NotContains(t, rr.Body.String(), "password")

	var resp struct {
		Success bool        `json:"success"`
		User    models.User `json:"user"`
	}
	testutils.DecodeJSON(t, rr, &resp)
	require.True(t, resp.Success)
	require.Equal(t, "Acme", *resp.User.BusinessName)
	require.Equal(t, "95814", *resp.User.Zip)
	require.Equal(t, models.UserStatusActive, resp.User.Status)

	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/register", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":"Email already exists"}`, rr.Body.String())
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Routes()

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/register", `{"email":"x@example.com","password":"secret1","type":"admin"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "type must be one of")

	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/register", `{"email":"x@example.com","type":"vendor"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "password is required")
}

func TestLoginHandler(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	seedUser(t, store, "vendor@example.com", "right-pass", models.UserTypeVendor)

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"vendor@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"vendor@example.com","password":"right-pass"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), "password")
	require.NotContains(t, rr.Body.String(), "adminToken")

	var user models.User
	testutils.DecodeJSON(t, rr, &user)
	require.Equal(t, "vendor@example.com", user.Email)
}

func TestLoginSuspended(t *testing.T) {
	h, store := newTestHandler(t)
	u := seedUser(t, store, "gone@example.com", "secret1", models.UserTypeVendor)
	require.NoError(t, store.UpdateUserStatus(context.Background(), u.ID, models.UserStatusSuspended))

	rr := testutils.Do(t, h.Routes(), http.MethodPost, "/auth/login", `{"email":"gone@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAuthRateLimit(t *testing.T) {
	store := testutils.NewMemStore()
	h := handlers.NewHandler(store, auth.NewTokenIssuer("s", time.Hour), handlers.Config{
		UploadDir: t.TempDir(), AuthRatePerSec: 0.001, AuthBurst: 1,
	}, zap.NewNop())
	router := h.Routes()

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"x"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"x"}`)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()

	rr := testutils.Do(t, router, http.MethodGet, "/api/admin", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// старый заголовок больше не работает
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", "X-Admin-Email", "admin@ca.gov")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", "Authorization", "Bearer forged")
	require.Equal(t, http.StatusForbidden, rr.Code)

	// токен, подписанный чужим ключом
	foreign, err := auth.NewTokenIssuer("other-secret", time.Hour).Issue(1, "x@admin.gov")
	require.NoError(t, err)
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/users", "", "Authorization", "Bearer "+foreign)
	require.Equal(t, http.StatusForbidden, rr.Code)

	token := adminToken(t, router, store)
	rr = testutils.Do(t, router, http.MethodGet, "/admin/users", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminDashboardAndApprove(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	agency := seedUser(t, store, "agency@ca.gov", "secret1", models.UserTypeAgency)
	seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)
	require.NoError(t, store.CreateOpportunity(context.Background(), &models.Opportunity{
		ID: "CAL-77", Title: "Pending work", ScopeSummary: "s", Status: models.OpportunityPending, PostedBy: &agency.ID,
	}))
	token := adminToken(t, router, store)
	authz := []string{"Authorization", "Bearer " + token}

	rr := testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", authz...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var dash struct {
		Stats struct {
			TotalVendors     int `json:"totalVendors"`
			TotalAgencies    int `json:"totalAgencies"`
			PendingApprovals int `json:"pendingApprovals"`
		} `json:"stats"`
		PendingOpportunities []struct {
			ID            string `json:"id"`
			PostedByEmail string `json:"postedByEmail"`
		} `json:"pendingOpportunities"`
		RecentActivity []struct {
			Type string `json:"type"`
			User string `json:"user"`
		} `json:"recentActivity"`
	}
	testutils.DecodeJSON(t, rr, &dash)
	require.Equal(t, 1, dash.Stats.TotalVendors)
	require.Equal(t, 1, dash.Stats.TotalAgencies)
	require.Equal(t, 1, dash.Stats.PendingApprovals)
	require.Len(t, dash.PendingOpportunities, 1)
	require.Equal(t, "agency@ca.gov", dash.PendingOpportunities[0].PostedByEmail)
	require.Len(t, dash.RecentActivity, 3)

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/CAL-77/approve", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/CAL-77/approve", "", authz...)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"id":"CAL-77","status":"published"}`, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/CAL-404/approve", "", authz...)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/opportunities/published", "")
	require.Contains(t, rr.Body.String(), "CAL-77")
}

func TestAdminUserManagement(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	token := adminToken(t, router, store)
	authz := []string{"Authorization", "Bearer " + token}

	rr := testutils.Do(t, router, http.MethodPost, "/api/admin/users",
		`{"email":"staff@admin.gov","password":"pw","type":"admin","organization_name":"HQ"}`, authz...)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	testutils.DecodeJSON(t, rr, &created)
	require.Equal(t, models.UserTypeAdmin, created.Type)

	rr = testutils.Do(t, router, http.MethodPost, "/api/admin/users",
		`{"email":"staff@admin.gov","password":"pw","type":"admin"}`, authz...)
	require.Equal(t, http.StatusConflict, rr.Code)

	path := "/api/admin/users/" + itoa(created.ID)
	rr = testutils.Do(t, router, http.MethodPut, path, `{}`, authz...)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "No fields to update")

	rr = testutils.Do(t, router, http.MethodPut, path, `{"password":"new-pass","contactName":"Lee"}`, authz...)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"staff@admin.gov","password":"new-pass"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutils.Do(t, router, http.MethodPut, path+"/status", `{"status":"banned"}`, authz...)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = testutils.Do(t, router, http.MethodPut, path+"/status", `{"status":"suspended"}`, authz...)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", `{"email":"staff@admin.gov","password":"new-pass"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, path, "", authz...)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"contactName":"Lee"`)

	rr = testutils.Do(t, router, http.MethodDelete, path, "", authz...)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodDelete, path, "", authz...)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSaveOpportunityIdempotent(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	vendor := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)
	seedOpportunity(t, store, "opp-001", models.OpportunityPublished, "2026-03-15")
	body := `{"vendorId":"` + itoa(vendor.ID) + `","opportunityId":"opp-001"}`

	for i := 0; i < 2; i++ {
		rr := testutils.Do(t, router, http.MethodPost, "/api/opportunities/save", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := testutils.Do(t, router, http.MethodGet, "/api/opportunities/saved/"+itoa(vendor.ID), "")
	var saved []models.Opportunity
	testutils.DecodeJSON(t, rr, &saved)
	require.Len(t, saved, 1)

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/save", `{"vendorId":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/save", `{"vendorId":1,"opportunityId":"nope"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutils.Do(t, router, http.MethodDelete, "/api/opportunities/unsave/"+itoa(vendor.ID)+"/opp-001", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodDelete, "/api/opportunities/unsave/"+itoa(vendor.ID)+"/opp-001", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	// POST /unsave не различает отсутствие закладки
	rr = testutils.Do(t, router, http.MethodPost, "/api/opportunities/unsave", body)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateUserEmptyBodyChangesNothing(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)
	_, err := store.UpdateProfile(context.Background(), u.ID, models.ProfileUpdate{
		BusinessName: strPtr("Acme"), Phone: strPtr("555-0100"), Districts: strPtr(`["04"]`),
	})
	require.NoError(t, err)

	before := testutils.Do(t, router, http.MethodGet, "/api/users/"+itoa(u.ID), "").Body.String()

	rr := testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID), `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, before, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID), `{"phone":"","businessName":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, before, rr.Body.String())
}

func TestUpdateUserNormalizesKeys(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	rr := testutils.Do(t, router, http.MethodPut, "/vendors/"+itoa(u.ID),
		`{"business_name":"New Name","preferredDistricts":["04","07"],"workCategories":"construction","zipCode":"95814","description":"We pave"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got models.User
	testutils.DecodeJSON(t, rr, &got)
	require.Equal(t, "New Name", *got.BusinessName)
	require.Equal(t, []string{"04", "07"}, got.Districts)
	require.Equal(t, []string{"construction"}, got.Categories)
	require.Equal(t, "95814", *got.Zip)
	require.Equal(t, "We pave", *got.BusinessDescription)

	rr = testutils.Do(t, router, http.MethodPut, "/api/users/999", `{"phone":"1"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserDirectory(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	a := seedUser(t, store, "paving@example.com", "secret1", models.UserTypeVendor)
	seedUser(t, store, "agency@ca.gov", "secret1", models.UserTypeAgency)
	_, err := store.UpdateProfile(context.Background(), a.ID, models.ProfileUpdate{
		BusinessName: strPtr("Paving Co"), Districts: strPtr(`["07"]`),
	})
	require.NoError(t, err)

	rr := testutils.Do(t, router, http.MethodGet, "/api/users?type=vendor&district=07&search=paving", "")
	var users []models.User
	testutils.DecodeJSON(t, rr, &users)
	require.Len(t, users, 1)
	require.Equal(t, []string{"07"}, users[0].Districts)

	rr = testutils.Do(t, router, http.MethodGet, "/api/vendors?type=agency", "")
	users = nil
	testutils.DecodeJSON(t, rr, &users)
	require.Len(t, users, 1)

	rr = testutils.Do(t, router, http.MethodGet, "/api/users/12345", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApplicationsFlow(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	agency := seedUser(t, store, "agency@ca.gov", "secret1", models.UserTypeAgency)
	vendor := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)
	require.NoError(t, store.CreateOpportunity(context.Background(), &models.Opportunity{
		ID: "CAL-9", Title: "Guardrail", ScopeSummary: "s", PostedBy: &agency.ID,
	}))

	body := `{"opportunityId":"CAL-9","vendorId":` + itoa(vendor.ID) + `,"notes":"Interested"}`
	rr := testutils.Do(t, router, http.MethodPost, "/api/applications", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	testutils.DecodeJSON(t, rr, &created)

	rr = testutils.Do(t, router, http.MethodPost, "/api/applications", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":"Already applied"}`, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodPost, "/api/applications", `{"opportunityId":"CAL-404","vendorId":1}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/applications?agencyId="+itoa(agency.ID), "")
	var apps []models.ApplicationView
	testutils.DecodeJSON(t, rr, &apps)
	require.Len(t, apps, 1)
	require.Equal(t, "Guardrail", apps[0].ProjectTitle)
	require.Equal(t, agency.ID, *apps[0].AgencyID)

	rr = testutils.Do(t, router, http.MethodGet, "/api/applications/opportunity/CAL-9", "")
	var applicants []models.Applicant
	testutils.DecodeJSON(t, rr, &applicants)
	require.Len(t, applicants, 1)
	require.Equal(t, "vendor@example.com", applicants[0].Email)
	require.Equal(t, []string{}, applicants[0].Districts)

	appPath := "/api/applications/" + itoa(created.ID)
	rr = testutils.Do(t, router, http.MethodPut, appPath+"/status", `{"status":"awarded"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodPut, appPath+"/status", `{"status":"maybe"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, appPath, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"awarded"`)

	rr = testutils.Do(t, router, http.MethodGet, "/api/applications/vendor/"+itoa(vendor.ID), "")
	apps = nil
	testutils.DecodeJSON(t, rr, &apps)
	require.Len(t, apps, 1)

	rr = testutils.Do(t, router, http.MethodDelete, appPath, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodGet, appPath, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMessagesFlow(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	agency := seedUser(t, store, "agency@ca.gov", "secret1", models.UserTypeAgency)
	vendor := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	rr := testutils.Do(t, router, http.MethodPost, "/api/messages",
		`{"senderId":`+itoa(vendor.ID)+`,"receiverId":"`+itoa(agency.ID)+`","subject":"Hello","body":"Question"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	}
	testutils.DecodeJSON(t, rr, &created)
	require.Equal(t, "Message sent successfully", created.Message)

	rr = testutils.Do(t, router, http.MethodPost, "/api/messages", `{"senderId":1,"receiverId":2}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/messages/user/"+itoa(agency.ID), "")
	var inbox []models.MessageView
	testutils.DecodeJSON(t, rr, &inbox)
	require.Len(t, inbox, 1)
	require.False(t, inbox[0].IsRead)

	rr = testutils.Do(t, router, http.MethodGet, "/api/messages/user/"+itoa(agency.ID)+"?type=sent", "")
	var sent []models.MessageView
	testutils.DecodeJSON(t, rr, &sent)
	require.Empty(t, sent)

	msgPath := "/api/messages/" + itoa(created.ID)
	rr = testutils.Do(t, router, http.MethodPut, msgPath+"/read", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutils.Do(t, router, http.MethodDelete, msgPath, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = testutils.Do(t, router, http.MethodPut, msgPath+"/read", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestContactForm(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Routes()

	rr := testutils.Do(t, router, http.MethodPost, "/api/messages/contact", `{"name":"Kim","email":"k@example.com","message":"Broken link","issueType":"bug"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutils.Do(t, router, http.MethodPost, "/api/messages/contact", `{"name":"Kim"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAndDownloadCapabilityStatement(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	vendor := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)
	content := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

	body, contentType := multipartBody(t, map[string]string{"userId": itoa(vendor.ID)}, "Capabilities.PDF", content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-cs", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		FileName     string `json:"fileName"`
		OriginalName string `json:"originalName"`
		Path         string `json:"path"`
		Size         int64  `json:"size"`
	}
	testutils.DecodeJSON(t, rr, &resp)
	require.True(t, strings.HasPrefix(resp.FileName, "cs-"))
	require.True(t, strings.HasSuffix(resp.FileName, ".pdf"))
	require.Equal(t, "Capabilities.PDF", resp.OriginalName)
	require.Equal(t, "/uploads/"+resp.FileName, resp.Path)
	require.Equal(t, int64(len(content)), resp.Size)

	stored, err := os.ReadFile(filepath.Join(h.UploadDir, resp.FileName))
	require.NoError(t, err)
	require.Equal(t, content, stored)

	u, err := store.GetUserByID(context.Background(), vendor.ID)
	require.NoError(t, err)
	require.Equal(t, resp.Path, *u.CapabilityStatement)

	rr = testutils.Do(t, router, http.MethodGet, "/api/vendors/"+itoa(vendor.ID)+"/capability-statement", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, content, rr.Body.Bytes())
	require.Contains(t, rr.Header().Get("Content-Disposition"), resp.FileName)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	vendor := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, nil, name, content)
		req := httptest.NewRequest(http.MethodPost, "/upload-cs", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := upload("virus.exe", []byte("MZ\x90\x00"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// расширение pdf, но внутри не pdf
	rr = upload("fake.pdf", []byte("just some text"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload-cs", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutils.Do(t, router, http.MethodGet, "/api/vendors/"+itoa(vendor.ID)+"/capability-statement", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	h, _ := newTestHandler(t)
	big := `{"email":"` + strings.Repeat("a", 1100000) + `"}`

	rr := testutils.Do(t, h.Routes(), http.MethodPost, "/api/auth/login", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAuthRateLimitIgnoresForwardedFor(t *testing.T) {
	store := testutils.NewMemStore()
	h := handlers.NewHandler(store, auth.NewTokenIssuer("s", time.Hour), handlers.Config{
		UploadDir: t.TempDir(), AuthRatePerSec: 0.001, AuthBurst: 1,
	}, zap.NewNop())
	router := h.Routes()
	body := `{"email":"a@b.c","password":"x"}`

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/login", body, "X-Forwarded-For", "10.0.0.1")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// новый X-Forwarded-For с того же соединения не даёт нового лимита
	for _, ip := range []string{"10.0.0.2", "10.0.0.3"} {
		rr = testutils.Do(t, router, http.MethodPost, "/api/auth/login", body, "X-Forwarded-For", ip)
		require.Equal(t, http.StatusTooManyRequests, rr.Code, ip)
	}
}

func TestAdminTokenRevokedWithAccount(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	token := adminToken(t, router, store)
	authz := []string{"Authorization", "Bearer " + token}
	root, err := store.GetUserByEmail(context.Background(), "root@admin.gov")
	require.NoError(t, err)

	rr := testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", authz...)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, store.UpdateUserStatus(context.Background(), root.ID, models.UserStatusSuspended))
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", authz...)
	require.Equal(t, http.StatusForbidden, rr.Code)

	require.NoError(t, store.UpdateUserStatus(context.Background(), root.ID, models.UserStatusActive))
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/dashboard", "", authz...)
	require.Equal(t, http.StatusOK, rr.Code)

	vendor := models.UserTypeVendor
	require.NoError(t, store.AdminUpdateUser(context.Background(), root.ID, models.AdminUserUpdate{Type: &vendor}))
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/users", "", authz...)
	require.Equal(t, http.StatusForbidden, rr.Code)

	require.NoError(t, store.DeleteUser(context.Background(), root.ID))
	rr = testutils.Do(t, router, http.MethodGet, "/api/admin/users", "", authz...)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestPasswordByteLimit(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	long := strings.Repeat("a", 100)

	rr := testutils.Do(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"long@example.com","password":"`+long+`","type":"vendor"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "at most 72 bytes")

	// 30 кириллических символов дают 60 байт и проходят
	rr = testutils.Do(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"cyr@example.com","password":"`+strings.Repeat("ж", 30)+`","type":"vendor"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	token := adminToken(t, router, store)
	authz := []string{"Authorization", "Bearer " + token}
	rr = testutils.Do(t, router, http.MethodPost, "/api/admin/users",
		`{"email":"staff@admin.gov","password":"`+long+`","type":"admin"}`, authz...)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "at most 72 bytes")

	staff := seedUser(t, store, "staff@admin.gov", "pw", models.UserTypeAdmin)
	rr = testutils.Do(t, router, http.MethodPut, "/api/admin/users/"+itoa(staff.ID),
		`{"password":"`+long+`"}`, authz...)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "at most 72 bytes")
}

func TestUpdateUserPrefersCamelCase(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	for i := 0; i < 20; i++ {
		rr := testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID),
			`{"business_name":"SNAKE","businessName":"CAMEL"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got models.User
		testutils.DecodeJSON(t, rr, &got)
		require.Equal(t, "CAMEL", *got.BusinessName)
	}
}

func TestUpdateUserAcceptsNumbers(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	rr := testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID),
		`{"yearsInBusiness":5,"districts":4,"zipCode":95814}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got models.User
	testutils.DecodeJSON(t, rr, &got)
	require.Equal(t, "5", *got.YearsInBusiness)
	require.Equal(t, []string{"4"}, got.Districts)
	require.Equal(t, "95814", *got.Zip)

	rr = testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID), `{"yearsInBusiness":{"n":5}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLegacyAuthProfileUpdate(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "vendor@example.com", "secret1", models.UserTypeVendor)

	for _, prefix := range []string{"/auth/", "/api/auth/"} {
		name := "Acme via " + prefix
		rr := testutils.Do(t, router, http.MethodPut, prefix+itoa(u.ID), `{"business_name":"`+name+`"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var got models.User
		testutils.DecodeJSON(t, rr, &got)
		require.Equal(t, name, *got.BusinessName)
	}

	rr := testutils.Do(t, router, http.MethodPut, "/auth/999", `{"phone":"1"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDirectoryCategoryWithAmpersand(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Routes()
	u := seedUser(t, store, "roads@example.com", "secret1", models.UserTypeVendor)

	rr := testutils.Do(t, router, http.MethodPut, "/api/users/"+itoa(u.ID), `{"categories":["Roads & Bridges"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = testutils.Do(t, router, http.MethodGet, "/api/users?category=Roads%20%26%20Bridges", "")
	var users []models.User
	testutils.DecodeJSON(t, rr, &users)
	require.Len(t, users, 1)
	require.Equal(t, []string{"Roads & Bridges"}, users[0].Categories)
}
