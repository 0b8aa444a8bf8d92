package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Типы пользователей
const (
	UserTypeVendor = "vendor"
	UserTypeAgency = "agency"
	UserTypeAdmin  = "admin"
)

// Статусы пользователя
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// Статусы возможности
const (
	OpportunityPending   = "pending"
	OpportunityPublished = "published"
)

// Статусы заявки
const (
	ApplicationPending  = "pending"
	ApplicationReviewed = "reviewed"
	ApplicationAwarded  = "awarded"
	ApplicationRejected = "rejected"
)

// Сущность Пользователя. Districts и Categories хранятся в БД текстом,
// списки заполняются через profile.ParseList после чтения.
type User struct {
	ID                  int64     `db:"id" json:"id"`
	Email               string    `db:"email" json:"email"`
	PasswordHash        string    `db:"password_hash" json:"-"`
	Type                string    `db:"type" json:"type"`
	BusinessName        *string   `db:"business_name" json:"businessName"`
	OrganizationName    *string   `db:"organization_name" json:"organizationName"`
	ContactName         *string   `db:"contact_name" json:"contactName"`
	Phone               *string   `db:"phone" json:"phone"`
	EIN                 *string   `db:"ein" json:"ein"`
	CertificationNumber *string   `db:"certification_number" json:"certificationNumber"`
	BusinessDescription *string   `db:"business_description" json:"businessDescription"`
	Website             *string   `db:"website" json:"website"`
	Address             *string   `db:"address" json:"address"`
	City                *string   `db:"city" json:"city"`
	State               *string   `db:"state" json:"state"`
	Zip                 *string   `db:"zip" json:"zip"`
	YearsInBusiness     *string   `db:"years_in_business" json:"yearsInBusiness"`
	Certifications      *string   `db:"certifications" json:"certifications"`
	DistrictsRaw        *string   `db:"districts" json:"-"`
	CategoriesRaw       *string   `db:"categories" json:"-"`
	CapabilityStatement *string   `db:"capability_statement" json:"capabilityStatement"`
	Status              string    `db:"status" json:"status"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`

	Districts  []string `db:"-" json:"districts"`
	Categories []string `db:"-" json:"categories"`
}

// DisplayName возвращает имя, осмысленное для типа пользователя.
func (u *User) DisplayName() string {
	if u.Type == UserTypeAgency && u.OrganizationName != nil {
		return *u.OrganizationName
	}
	if u.BusinessName != nil {
		return *u.BusinessName
	}
	if u.OrganizationName != nil {
		return *u.OrganizationName
	}
	return u.Email
}

// Сущность Возможности (закупки)
type Opportunity struct {
	ID               string             `db:"id" json:"id"`
	Title            string             `db:"title" json:"title"`
	ScopeSummary     string             `db:"scope_summary" json:"scopeSummary"`
	District         string             `db:"district" json:"district"`
	DistrictName     string             `db:"district_name" json:"districtName"`
	Category         string             `db:"category" json:"category"`
	CategoryName     string             `db:"category_name" json:"categoryName"`
	Subcategory      *string            `db:"subcategory" json:"subcategory"`
	EstimatedValue   *string            `db:"estimated_value" json:"estimatedValue"`
	DueDate          *string            `db:"due_date" json:"dueDate"`
	DueTime          *string            `db:"due_time" json:"dueTime"`
	SubmissionMethod *string            `db:"submission_method" json:"submissionMethod"`
	Status           string             `db:"status" json:"status"`
	PostedBy         *int64             `db:"posted_by" json:"postedBy"`
	PostedDate       time.Time          `db:"posted_date" json:"postedDate"`
	Attachments      types.NullJSONText `db:"attachments" json:"attachments"`
	Duration         *string            `db:"duration" json:"duration"`
	Requirements     *string            `db:"requirements" json:"requirements"`
	Certifications   *string            `db:"certifications" json:"certifications"`
	Experience       *string            `db:"experience" json:"experience"`
}

// PendingOpportunity: возможность на модерации вместе с автором.
type PendingOpportunity struct {
	Opportunity
	PostedByName  *string `db:"posted_by_name" json:"postedByName"`
	PostedByEmail *string `db:"posted_by_email" json:"postedByEmail"`
}

// Сущность Заявки
type Application struct {
	ID            int64     `db:"id" json:"id"`
	OpportunityID string    `db:"opportunity_id" json:"opportunityId"`
	VendorID      int64     `db:"vendor_id" json:"vendorId"`
	AgencyID      *int64    `db:"agency_id" json:"agencyId"`
	Status        string    `db:"status" json:"status"`
	AppliedDate   time.Time `db:"applied_date" json:"appliedDate"`
	Notes         *string   `db:"notes" json:"notes"`
}

// ApplicationView: заявка с данными возможности и сторон.
type ApplicationView struct {
	Application
	ProjectTitle string  `db:"project_title" json:"projectTitle"`
	DistrictName string  `db:"district_name" json:"districtName"`
	Category     string  `db:"category" json:"category"`
	AgencyName   *string `db:"agency_name" json:"agencyName"`
	VendorName   *string `db:"vendor_name" json:"vendorName"`
	VendorEmail  string  `db:"vendor_email" json:"vendorEmail"`
}

// Applicant: заявка в разрезе поставщика (вид для агентства).
type Applicant struct {
	ApplicationID       int64     `db:"application_id" json:"applicationId"`
	AppliedDate         time.Time `db:"applied_date" json:"appliedDate"`
	Status              string    `db:"status" json:"status"`
	Notes               *string   `db:"notes" json:"notes"`
	VendorID            int64     `db:"vendor_id" json:"vendorId"`
	BusinessName        *string   `db:"business_name" json:"businessName"`
	Email               string    `db:"email" json:"email"`
	Phone               *string   `db:"phone" json:"phone"`
	ContactName         *string   `db:"contact_name" json:"contactName"`
	DistrictsRaw        *string   `db:"districts" json:"-"`
	CategoriesRaw       *string   `db:"categories" json:"-"`
	CapabilityStatement *string   `db:"capability_statement" json:"capabilityStatement"`

	Districts  []string `db:"-" json:"districts"`
	Categories []string `db:"-" json:"categories"`
}

// Сущность Закладки
type SavedOpportunity struct {
	ID            int64     `db:"id" json:"id"`
	VendorID      int64     `db:"vendor_id" json:"vendorId"`
	OpportunityID string    `db:"opportunity_id" json:"opportunityId"`
	SavedAt       time.Time `db:"saved_at" json:"savedAt"`
}

// Сущность Сообщения
type Message struct {
	ID            int64     `db:"id" json:"id"`
	SenderID      int64     `db:"sender_id" json:"senderId"`
	ReceiverID    int64     `db:"receiver_id" json:"receiverId"`
	OpportunityID *string   `db:"opportunity_id" json:"opportunityId"`
	Subject       *string   `db:"subject" json:"subject"`
	Body          string    `db:"body" json:"body"`
	IsRead        bool      `db:"is_read" json:"isRead"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// MessageView: сообщение с именами сторон.
type MessageView struct {
	Message
	SenderName       *string `db:"sender_name" json:"senderName"`
	ReceiverName     *string `db:"receiver_name" json:"receiverName"`
	OpportunityTitle *string `db:"opportunity_title" json:"opportunityTitle"`
}
