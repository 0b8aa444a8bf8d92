package db

import (
	"context"
	"fmt"
	"strings"

	"bizconnect/internal/profile"
	"bizconnect/models"
)

const applicationViewQuery = `
        SELECT a.id, a.opportunity_id, a.vendor_id, a.agency_id, a.status, a.applied_date, a.notes,
            o.title AS project_title, o.district_name, o.category,
            ag.organization_name AS agency_name,
            v.business_name AS vendor_name, v.email AS vendor_email
        FROM applications a
        JOIN opportunities o ON a.opportunity_id = o.id
        JOIN users v ON a.vendor_id = v.id
        LEFT JOIN users ag ON a.agency_id = ag.id`

// CreateApplication сохраняет заявку. Повторная заявка того же поставщика
// на ту же возможность даёт ErrDuplicate.
func (s *Storage) CreateApplication(ctx context.Context, a *models.Application) error {
	if a.Status == "" {
		a.Status = models.ApplicationPending
	}
	query := `
        INSERT INTO applications (opportunity_id, vendor_id, agency_id, status, notes)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, applied_date`
	err := s.db.QueryRowxContext(ctx, query, a.OpportunityID, a.VendorID, a.AgencyID, a.Status, a.Notes).
		Scan(&a.ID, &a.AppliedDate)
	return mapError(err)
}

func (s *Storage) GetApplication(ctx context.Context, id int64) (*models.ApplicationView, error) {
	a := &models.ApplicationView{}
	query := applicationViewQuery + ` WHERE a.id = $1`
	if err := s.db.GetContext(ctx, a, query, id); err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// ListApplications: заявки поставщика и/или агентства, свежие первыми.
func (s *Storage) ListApplications(ctx context.Context, f models.ApplicationFilter) ([]models.ApplicationView, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.VendorID != 0 {
		args = append(args, f.VendorID)
		conds = append(conds, fmt.Sprintf("a.vendor_id = $%d", len(args)))
	}
	if f.AgencyID != 0 {
		args = append(args, f.AgencyID)
		conds = append(conds, fmt.Sprintf("a.agency_id = $%d", len(args)))
	}

	query := applicationViewQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.applied_date DESC"

	apps := []models.ApplicationView{}
	if err := s.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, err
	}
	return apps, nil
}

// ListOpportunityApplicants: поставщики, откликнувшиеся на возможность.
func (s *Storage) ListOpportunityApplicants(ctx context.Context, opportunityID string) ([]models.Applicant, error) {
	applicants := []models.Applicant{}
	query := `
        SELECT a.id AS application_id, a.applied_date, a.status, a.notes,
            u.id AS vendor_id, u.business_name, u.email, u.phone, u.contact_name,
            u.districts, u.categories, u.capability_statement
        FROM applications a
        JOIN users u ON a.vendor_id = u.id
        WHERE a.opportunity_id = $1
        ORDER BY a.applied_date DESC`
	if err := s.db.SelectContext(ctx, &applicants, query, opportunityID); err != nil {
		return nil, err
	}
	for i := range applicants {
		applicants[i].Districts = profile.ParseList(applicants[i].DistrictsRaw)
		applicants[i].Categories = profile.ParseList(applicants[i].CategoriesRaw)
	}
	return applicants, nil
}

func (s *Storage) UpdateApplicationStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE applications SET status = $1 WHERE id = $2`
	return expectAffected(s.db.ExecContext(ctx, query, status, id))
}

func (s *Storage) DeleteApplication(ctx context.Context, id int64) error {
	query := `DELETE FROM applications WHERE id = $1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}
