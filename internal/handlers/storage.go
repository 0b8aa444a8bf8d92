package handlers

import (
	"context"

	"bizconnect/models"
)

type StorageInterface interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, p models.ProfileUpdate) (*models.User, error)
	SetCapabilityStatement(ctx context.Context, id int64, path string) error
	UpdateUserStatus(ctx context.Context, id int64, status string) error
	AdminUpdateUser(ctx context.Context, id int64, upd models.AdminUserUpdate) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsersByType(ctx context.Context, userType string) (int, error)
	RecentUsers(ctx context.Context, limit int) ([]models.User, error)

	CreateOpportunity(ctx context.Context, o *models.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context) ([]models.Opportunity, error)
	ListPublishedOpportunities(ctx context.Context) ([]models.Opportunity, error)
	ListAgencyOpportunities(ctx context.Context, agencyID int64) ([]models.Opportunity, error)
	ListPendingOpportunities(ctx context.Context) ([]models.PendingOpportunity, error)
	UpdateOpportunity(ctx context.Context, o *models.Opportunity) error
	SetOpportunityStatus(ctx context.Context, id, status string) error
	DeleteOpportunity(ctx context.Context, id string) error
	CountOpportunitiesByStatus(ctx context.Context, status string) (int, error)

	SaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error)
	UnsaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error)
	ListSavedOpportunities(ctx context.Context, vendorID int64) ([]models.Opportunity, error)

	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id int64) (*models.ApplicationView, error)
	ListApplications(ctx context.Context, f models.ApplicationFilter) ([]models.ApplicationView, error)
	ListOpportunityApplicants(ctx context.Context, opportunityID string) ([]models.Applicant, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status string) error
	DeleteApplication(ctx context.Context, id int64) error

	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, userID int64, box string) ([]models.MessageView, error)
	MarkMessageRead(ctx context.Context, id int64) error
	DeleteMessage(ctx context.Context, id int64) error
}
