package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bizconnect/internal/profile"
)

// RefID: ссылка на пользователя. Клиенты присылают её то числом, то строкой.
type RefID int64

func (r *RefID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", s)
		}
		*r = RefID(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*r = RefID(v)
	return nil
}

type RegisterRequest struct {
	Email               string `json:"email" validate:"required,email"`
	Password            string `json:"password" validate:"required,min=6,pwbytes"`
	Type                string `json:"type" validate:"required,oneof=vendor agency"`
	BusinessName        string `json:"businessName"`
	OrganizationName    string `json:"organizationName"`
	ContactName         string `json:"contactName"`
	Phone               string `json:"phone"`
	EIN                 string `json:"ein"`
	CertificationNumber string `json:"certificationNumber"`
	Address             string `json:"address"`
	City                string `json:"city"`
	Zip                 string `json:"zip"`
	Website             string `json:"website"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type OpportunityRequest struct {
	ID               string          `json:"id" validate:"required,max=64"`
	Title            string          `json:"title" validate:"required"`
	ScopeSummary     string          `json:"scopeSummary" validate:"required"`
	District         string          `json:"district"`
	DistrictName     string          `json:"districtName"`
	Category         string          `json:"category"`
	CategoryName     string          `json:"categoryName"`
	Subcategory      string          `json:"subcategory"`
	EstimatedValue   string          `json:"estimatedValue"`
	DueDate          string          `json:"dueDate"`
	DueTime          string          `json:"dueTime"`
	SubmissionMethod string          `json:"submissionMethod"`
	Status           string          `json:"status" validate:"omitempty,oneof=pending published"`
	PostedBy         RefID           `json:"postedBy" validate:"required"`
	Attachments      json.RawMessage `json:"attachments"`
	Duration         string          `json:"duration"`
	Requirements     string          `json:"requirements"`
	Certifications   string          `json:"certifications"`
	Experience       string          `json:"experience"`
}

type SaveRequest struct {
	VendorID      RefID  `json:"vendorId" validate:"required"`
	OpportunityID string `json:"opportunityId" validate:"required"`
}

type ApplicationRequest struct {
	OpportunityID string `json:"opportunityId" validate:"required"`
	VendorID      RefID  `json:"vendorId" validate:"required"`
	Notes         string `json:"notes"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type MessageRequest struct {
	SenderID      RefID  `json:"senderId" validate:"required"`
	ReceiverID    RefID  `json:"receiverId" validate:"required"`
	OpportunityID string `json:"opportunityId"`
	Subject       string `json:"subject"`
	Body          string `json:"body" validate:"required"`
}

type ContactRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message" validate:"required"`
	IssueType string `json:"issueType"`
	PageURL   string `json:"pageUrl"`
}

// ProfileRequest: частичное обновление профиля. Пустые значения
// не перезаписывают сохранённые.
type ProfileRequest struct {
	BusinessName        *profile.Text     `json:"businessName"`
	OrganizationName    *profile.Text     `json:"organizationName"`
	ContactName         *profile.Text     `json:"contactName"`
	Phone               *profile.Text     `json:"phone"`
	EIN                 *profile.Text     `json:"ein"`
	CertificationNumber *profile.Text     `json:"certificationNumber"`
	BusinessDescription *profile.Text     `json:"businessDescription"`
	Website             *profile.Text     `json:"website"`
	Address             *profile.Text     `json:"address"`
	City                *profile.Text     `json:"city"`
	State               *profile.Text     `json:"state"`
	Zip                 *profile.Text     `json:"zip"`
	YearsInBusiness     *profile.Text     `json:"yearsInBusiness"`
	Certifications      *profile.Text     `json:"certifications"`
	CapabilityStatement *profile.Text     `json:"capabilityStatement"`
	Districts           profile.ListField `json:"districts"`
	Categories          profile.ListField `json:"categories"`
}

// Update приводит запрос к набору значений для COALESCE: nil: оставить как есть.
func (p ProfileRequest) Update() ProfileUpdate {
	return ProfileUpdate{
		BusinessName:        profile.Truthy(p.BusinessName),
		OrganizationName:    profile.Truthy(p.OrganizationName),
		ContactName:         profile.Truthy(p.ContactName),
		Phone:               profile.Truthy(p.Phone),
		EIN:                 profile.Truthy(p.EIN),
		CertificationNumber: profile.Truthy(p.CertificationNumber),
		BusinessDescription: profile.Truthy(p.BusinessDescription),
		Website:             profile.Truthy(p.Website),
		Address:             profile.Truthy(p.Address),
		City:                profile.Truthy(p.City),
		State:               profile.Truthy(p.State),
		Zip:                 profile.Truthy(p.Zip),
		YearsInBusiness:     profile.Truthy(p.YearsInBusiness),
		Certifications:      profile.Truthy(p.Certifications),
		CapabilityStatement: profile.Truthy(p.CapabilityStatement),
		Districts:           p.Districts.Value(),
		Categories:          p.Categories.Value(),
	}
}

// ProfileUpdate: значения для UPDATE ... COALESCE.
type ProfileUpdate struct {
	BusinessName        *string
	OrganizationName    *string
	ContactName         *string
	Phone               *string
	EIN                 *string
	CertificationNumber *string
	BusinessDescription *string
	Website             *string
	Address             *string
	City                *string
	State               *string
	Zip                 *string
	YearsInBusiness     *string
	Certifications      *string
	CapabilityStatement *string
	Districts           *string
	Categories          *string
}

// IsEmpty: true, если ни одно поле не будет изменено.
func (u ProfileUpdate) IsEmpty() bool {
	return u == ProfileUpdate{}
}

// AdminUserRequest: создание пользователя администратором.
type AdminUserRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,pwbytes"`
	Type             string `json:"type" validate:"required,oneof=vendor agency admin"`
	BusinessName     string `json:"businessName"`
	OrganizationName string `json:"organizationName"`
	Status           string `json:"status" validate:"omitempty,oneof=active suspended"`
}

// AdminUserUpdate: правка пользователя администратором; nil-поля не трогаются.
type AdminUserUpdate struct {
	BusinessName     *string `json:"businessName"`
	OrganizationName *string `json:"organizationName"`
	ContactName      *string `json:"contactName"`
	Phone            *string `json:"phone"`
	EIN              *string `json:"ein"`
	Status           *string `json:"status" validate:"omitempty,oneof=active suspended"`
	Type             *string `json:"type" validate:"omitempty,oneof=vendor agency admin"`
	Password         *string `json:"password" validate:"omitempty,pwbytes"`

	PasswordHash *string `json:"-"`
}

// UserFilter: фильтры каталога пользователей.
type UserFilter struct {
	Type     string
	District string
	Category string
	Search   string
	Limit    int
}

// ApplicationFilter: фильтры списка заявок.
type ApplicationFilter struct {
	VendorID int64
	AgencyID int64
}
