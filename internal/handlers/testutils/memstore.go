package testutils

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bizconnect/db"
	"bizconnect/internal/profile"
	"bizconnect/models"
)

// MemStore: хранилище в памяти для тестов обработчиков. Повторяет
// ограничения схемы: уникальный email, уникальную заявку, внешние ключи.
type MemStore struct {
	mu sync.Mutex

	PingErr error

	users         map[int64]*models.User
	opportunities map[string]*models.Opportunity
	saved         map[savedKey]time.Time
	applications  map[int64]*models.Application
	messages      map[int64]*models.Message

	nextID int64
	clock  time.Time
}

type savedKey struct {
	vendorID      int64
	opportunityID string
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:         map[int64]*models.User{},
		opportunities: map[string]*models.Opportunity{},
		saved:         map[savedKey]time.Time{},
		applications:  map[int64]*models.Application{},
		messages:      map[int64]*models.Message{},
		clock:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick выдаёт строго возрастающие метки, чтобы сортировка по времени была стабильной.
func (m *MemStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Districts = profile.ParseList(c.DistrictsRaw)
	c.Categories = profile.ParseList(c.CategoriesRaw)
	return &c
}

func (m *MemStore) Ping(ctx context.Context) error { return m.PingErr }

func (m *MemStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return db.ErrDuplicate
		}
	}
	u.ID = m.id()
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	u.CreatedAt = m.tick()
	m.users[u.ID] = copyUser(u)
	*u = *copyUser(u)
	return nil
}

func (m *MemStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemStore) UserExists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func containsFold(s *string, sub string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), strings.ToLower(sub))
}

func (m *MemStore) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.User{}
	for _, u := range m.users {
		if f.Type != "" && u.Type != f.Type {
			continue
		}
		if f.District != "" && (u.DistrictsRaw == nil || !strings.Contains(*u.DistrictsRaw, f.District)) {
			continue
		}
		if f.Category != "" && (u.CategoriesRaw == nil || !strings.Contains(*u.CategoriesRaw, f.Category)) {
			continue
		}
		if f.Search != "" && !containsFold(u.BusinessName, f.Search) &&
			!containsFold(u.OrganizationName, f.Search) && !containsFold(&u.Email, f.Search) {
			continue
		}
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func merge(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func (m *MemStore) UpdateProfile(ctx context.Context, id int64, p models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	merge(&u.BusinessName, p.BusinessName)
	merge(&u.OrganizationName, p.OrganizationName)
	merge(&u.ContactName, p.ContactName)
	merge(&u.Phone, p.Phone)
	merge(&u.EIN, p.EIN)
	merge(&u.CertificationNumber, p.CertificationNumber)
	merge(&u.BusinessDescription, p.BusinessDescription)
	merge(&u.Website, p.Website)
	merge(&u.Address, p.Address)
	merge(&u.City, p.City)
	merge(&u.State, p.State)
	merge(&u.Zip, p.Zip)
	merge(&u.YearsInBusiness, p.YearsInBusiness)
	merge(&u.Certifications, p.Certifications)
	merge(&u.CapabilityStatement, p.CapabilityStatement)
	merge(&u.DistrictsRaw, p.Districts)
	merge(&u.CategoriesRaw, p.Categories)
	return copyUser(u), nil
}

func (m *MemStore) SetCapabilityStatement(ctx context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.CapabilityStatement = &path
	return nil
}

func (m *MemStore) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *MemStore) AdminUpdateUser(ctx context.Context, id int64, upd models.AdminUserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if upd.BusinessName == nil && upd.OrganizationName == nil && upd.ContactName == nil &&
		upd.Phone == nil && upd.EIN == nil && upd.Status == nil && upd.Type == nil && upd.PasswordHash == nil {
		return db.ErrNoFields
	}
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	merge(&u.BusinessName, upd.BusinessName)
	merge(&u.OrganizationName, upd.OrganizationName)
	merge(&u.ContactName, upd.ContactName)
	merge(&u.Phone, upd.Phone)
	merge(&u.EIN, upd.EIN)
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.Type != nil {
		u.Type = *upd.Type
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	return nil
}

func (m *MemStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	// внешние ключи без каскада, как в схеме
	for _, a := range m.applications {
		if a.VendorID == id {
			return db.ErrInvalidReference
		}
	}
	for k := range m.saved {
		if k.vendorID == id {
			return db.ErrInvalidReference
		}
	}
	for _, msg := range m.messages {
		if msg.SenderID == id || msg.ReceiverID == id {
			return db.ErrInvalidReference
		}
	}
	for _, o := range m.opportunities {
		if o.PostedBy != nil && *o.PostedBy == id {
			return db.ErrInvalidReference
		}
	}
	delete(m.users, id)
	return nil
}

func (m *MemStore) CountUsersByType(ctx context.Context, userType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.Type == userType {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) RecentUsers(ctx context.Context, limit int) ([]models.User, error) {
	return m.ListUsers(ctx, models.UserFilter{Limit: limit})
}

func (m *MemStore) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.opportunities[o.ID]; ok {
		return db.ErrDuplicate
	}
	if o.PostedBy != nil {
		if _, ok := m.users[*o.PostedBy]; !ok {
			return db.ErrInvalidReference
		}
	}
	if o.Status == "" {
		o.Status = models.OpportunityPublished
	}
	o.PostedDate = m.tick()
	c := *o
	m.opportunities[o.ID] = &c
	return nil
}

func (m *MemStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opportunities[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *o
	return &c, nil
}

// listOpportunities: свежие первыми.
func (m *MemStore) listOpportunities(keep func(*models.Opportunity) bool) []models.Opportunity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Opportunity{}
	for _, o := range m.opportunities {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedDate.After(out[j].PostedDate) })
	return out
}

func (m *MemStore) ListOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return m.listOpportunities(func(*models.Opportunity) bool { return true }), nil
}

func (m *MemStore) ListPublishedOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return m.listOpportunities(func(o *models.Opportunity) bool {
		return o.Status == models.OpportunityPublished
	}), nil
}

func (m *MemStore) ListAgencyOpportunities(ctx context.Context, agencyID int64) ([]models.Opportunity, error) {
	return m.listOpportunities(func(o *models.Opportunity) bool {
		return o.PostedBy != nil && *o.PostedBy == agencyID
	}), nil
}

func (m *MemStore) ListPendingOpportunities(ctx context.Context) ([]models.PendingOpportunity, error) {
	opps := m.listOpportunities(func(o *models.Opportunity) bool {
		return o.Status == models.OpportunityPending
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PendingOpportunity, 0, len(opps))
	for _, o := range opps {
		p := models.PendingOpportunity{Opportunity: o}
		if o.PostedBy != nil {
			if u, ok := m.users[*o.PostedBy]; ok {
				p.PostedByName = u.OrganizationName
				p.PostedByEmail = &u.Email
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MemStore) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.opportunities[o.ID]
	if !ok {
		return db.ErrNotFound
	}
	if o.Status == "" {
		o.Status = existing.Status
	}
	o.PostedBy = existing.PostedBy
	o.PostedDate = existing.PostedDate
	c := *o
	m.opportunities[o.ID] = &c
	return nil
}

func (m *MemStore) SetOpportunityStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opportunities[id]
	if !ok {
		return db.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *MemStore) DeleteOpportunity(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.opportunities[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.opportunities, id)
	for k := range m.saved {
		if k.opportunityID == id {
			delete(m.saved, k)
		}
	}
	for appID, a := range m.applications {
		if a.OpportunityID == id {
			delete(m.applications, appID)
		}
	}
	return nil
}

func (m *MemStore) CountOpportunitiesByStatus(ctx context.Context, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.opportunities {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) SaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[vendorID]; !ok {
		return false, db.ErrInvalidReference
	}
	if _, ok := m.opportunities[opportunityID]; !ok {
		return false, db.ErrInvalidReference
	}
	key := savedKey{vendorID, opportunityID}
	if _, ok := m.saved[key]; ok {
		return false, nil
	}
	m.saved[key] = m.tick()
	return true, nil
}

func (m *MemStore) UnsaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := savedKey{vendorID, opportunityID}
	if _, ok := m.saved[key]; !ok {
		return false, nil
	}
	delete(m.saved, key)
	return true, nil
}

func (m *MemStore) ListSavedOpportunities(ctx context.Context, vendorID int64) ([]models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		opp     models.Opportunity
		savedAt time.Time
	}
	var entries []entry
	for k, at := range m.saved {
		if k.vendorID != vendorID {
			continue
		}
		if o, ok := m.opportunities[k.opportunityID]; ok {
			entries = append(entries, entry{*o, at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].savedAt.After(entries[j].savedAt) })

	out := make([]models.Opportunity, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.opp)
	}
	return out, nil
}

func (m *MemStore) CreateApplication(ctx context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[a.VendorID]; !ok {
		return db.ErrInvalidReference
	}
	if _, ok := m.opportunities[a.OpportunityID]; !ok {
		return db.ErrInvalidReference
	}
	for _, existing := range m.applications {
		if existing.OpportunityID == a.OpportunityID && existing.VendorID == a.VendorID {
			return db.ErrDuplicate
		}
	}
	a.ID = m.id()
	if a.Status == "" {
		a.Status = models.ApplicationPending
	}
	a.AppliedDate = m.tick()
	c := *a
	m.applications[a.ID] = &c
	return nil
}

func (m *MemStore) view(a *models.Application) models.ApplicationView {
	v := models.ApplicationView{Application: *a}
	if o, ok := m.opportunities[a.OpportunityID]; ok {
		v.ProjectTitle = o.Title
		v.DistrictName = o.DistrictName
		v.Category = o.Category
	}
	if u, ok := m.users[a.VendorID]; ok {
		v.VendorName = u.BusinessName
		v.VendorEmail = u.Email
	}
	if a.AgencyID != nil {
		if u, ok := m.users[*a.AgencyID]; ok {
			v.AgencyName = u.OrganizationName
		}
	}
	return v
}

func (m *MemStore) GetApplication(ctx context.Context, id int64) (*models.ApplicationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	v := m.view(a)
	return &v, nil
}

func (m *MemStore) ListApplications(ctx context.Context, f models.ApplicationFilter) ([]models.ApplicationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ApplicationView{}
	for _, a := range m.applications {
		if f.VendorID != 0 && a.VendorID != f.VendorID {
			continue
		}
		if f.AgencyID != 0 && (a.AgencyID == nil || *a.AgencyID != f.AgencyID) {
			continue
		}
		out = append(out, m.view(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedDate.After(out[j].AppliedDate) })
	return out, nil
}

func (m *MemStore) ListOpportunityApplicants(ctx context.Context, opportunityID string) ([]models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Applicant{}
	for _, a := range m.applications {
		if a.OpportunityID != opportunityID {
			continue
		}
		u := m.users[a.VendorID]
		out = append(out, models.Applicant{
			ApplicationID:       a.ID,
			AppliedDate:         a.AppliedDate,
			Status:              a.Status,
			Notes:               a.Notes,
			VendorID:            u.ID,
			BusinessName:        u.BusinessName,
			Email:               u.Email,
			Phone:               u.Phone,
			ContactName:         u.ContactName,
			DistrictsRaw:        u.DistrictsRaw,
			CategoriesRaw:       u.CategoriesRaw,
			CapabilityStatement: u.CapabilityStatement,
			Districts:           profile.ParseList(u.DistrictsRaw),
			Categories:          profile.ParseList(u.CategoriesRaw),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedDate.After(out[j].AppliedDate) })
	return out, nil
}

func (m *MemStore) UpdateApplicationStatus(ctx context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return db.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *MemStore) DeleteApplication(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applications[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.applications, id)
	return nil
}

func (m *MemStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[msg.SenderID]; !ok {
		return db.ErrInvalidReference
	}
	if _, ok := m.users[msg.ReceiverID]; !ok {
		return db.ErrInvalidReference
	}
	msg.ID = m.id()
	msg.CreatedAt = m.tick()
	c := *msg
	m.messages[msg.ID] = &c
	return nil
}

func (m *MemStore) ListMessages(ctx context.Context, userID int64, box string) ([]models.MessageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MessageView{}
	for _, msg := range m.messages {
		owner := msg.ReceiverID
		if box == db.BoxSent {
			owner = msg.SenderID
		}
		if owner != userID {
			continue
		}
		v := models.MessageView{Message: *msg}
		if u, ok := m.users[msg.SenderID]; ok {
			name := u.DisplayName()
			v.SenderName = &name
		}
		if u, ok := m.users[msg.ReceiverID]; ok {
			name := u.DisplayName()
			v.ReceiverName = &name
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) MarkMessageRead(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return db.ErrNotFound
	}
	msg.IsRead = true
	return nil
}

func (m *MemStore) DeleteMessage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.messages, id)
	return nil
}
