package db

import (
	"context"

	"bizconnect/models"
)

const opportunityColumns = `id, title, scope_summary, district, district_name, category, category_name,
	subcategory, estimated_value, due_date, due_time, submission_method, status, posted_by,
	posted_date, attachments, duration, requirements, certifications, experience`

// CreateOpportunity сохраняет возможность. Дата публикации выставляется БД.
func (s *Storage) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.Status == "" {
		o.Status = models.OpportunityPublished
	}
	query := `
        INSERT INTO opportunities
            (id, title, scope_summary, district, district_name, category, category_name,
             subcategory, estimated_value, due_date, due_time, submission_method, status,
             posted_by, attachments, duration, requirements, certifications, experience)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING posted_date`
	err := s.db.QueryRowxContext(ctx, query,
		o.ID, o.Title, o.ScopeSummary, o.District, o.DistrictName, o.Category, o.CategoryName,
		o.Subcategory, o.EstimatedValue, o.DueDate, o.DueTime, o.SubmissionMethod, o.Status,
		o.PostedBy, o.Attachments, o.Duration, o.Requirements, o.Certifications, o.Experience).
		Scan(&o.PostedDate)
	return mapError(err)
}

func (s *Storage) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	o := &models.Opportunity{}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	if err := s.db.GetContext(ctx, o, query, id); err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

// ListOpportunities: все возможности, свежие первыми.
func (s *Storage) ListOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	opps := []models.Opportunity{}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities ORDER BY posted_date DESC`
	if err := s.db.SelectContext(ctx, &opps, query); err != nil {
		return nil, err
	}
	return opps, nil
}

// ListPublishedOpportunities: то, что видят поставщики.
func (s *Storage) ListPublishedOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	opps := []models.Opportunity{}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE status = $1 ORDER BY posted_date DESC`
	if err := s.db.SelectContext(ctx, &opps, query, models.OpportunityPublished); err != nil {
		return nil, err
	}
	return opps, nil
}

func (s *Storage) ListAgencyOpportunities(ctx context.Context, agencyID int64) ([]models.Opportunity, error) {
	opps := []models.Opportunity{}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE posted_by = $1 ORDER BY posted_date DESC`
	if err := s.db.SelectContext(ctx, &opps, query, agencyID); err != nil {
		return nil, err
	}
	return opps, nil
}

// ListPendingOpportunities: очередь модерации вместе с автором.
func (s *Storage) ListPendingOpportunities(ctx context.Context) ([]models.PendingOpportunity, error) {
	opps := []models.PendingOpportunity{}
	query := `
        SELECT ` + prefixColumns("o", opportunityColumns) + `,
            COALESCE(u.organization_name, u.business_name) AS posted_by_name,
            u.email AS posted_by_email
        FROM opportunities o
        LEFT JOIN users u ON o.posted_by = u.id
        WHERE o.status = $1
        ORDER BY o.posted_date DESC`
	if err := s.db.SelectContext(ctx, &opps, query, models.OpportunityPending); err != nil {
		return nil, err
	}
	return opps, nil
}

// UpdateOpportunity перезаписывает редактируемые поля. Пустой статус
// оставляет текущий, автор не меняется.
func (s *Storage) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	query := `
        UPDATE opportunities SET
            title = $1, scope_summary = $2, district = $3, district_name = $4,
            category = $5, category_name = $6, subcategory = $7, estimated_value = $8,
            due_date = $9, due_time = $10, submission_method = $11, attachments = $12,
            duration = $13, requirements = $14, certifications = $15, experience = $16,
            status = COALESCE(NULLIF($17, ''), status)
        WHERE id = $18
        RETURNING status, posted_by, posted_date`
	err := s.db.QueryRowxContext(ctx, query,
		o.Title, o.ScopeSummary, o.District, o.DistrictName,
		o.Category, o.CategoryName, o.Subcategory, o.EstimatedValue,
		o.DueDate, o.DueTime, o.SubmissionMethod, o.Attachments,
		o.Duration, o.Requirements, o.Certifications, o.Experience, o.Status, o.ID).
		Scan(&o.Status, &o.PostedBy, &o.PostedDate)
	return mapError(err)
}

func (s *Storage) SetOpportunityStatus(ctx context.Context, id, status string) error {
	query := `UPDATE opportunities SET status = $1 WHERE id = $2`
	return expectAffected(s.db.ExecContext(ctx, query, status, id))
}

// DeleteOpportunity удаляет возможность вместе с закладками и заявками на неё.
func (s *Storage) DeleteOpportunity(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM saved_opportunities WHERE opportunity_id = $1`,
		`DELETE FROM applications WHERE opportunity_id = $1`,
		`UPDATE messages SET opportunity_id = NULL WHERE opportunity_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1`, id)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) CountOpportunitiesByStatus(ctx context.Context, status string) (int, error) {
	var count int
	query := `SELECT COUNT(1) FROM opportunities WHERE status = $1`
	err := s.db.GetContext(ctx, &count, query, status)
	return count, err
}

// SaveOpportunity добавляет закладку. Повторное сохранение ничего не меняет,
// created сообщает, появилась ли новая запись.
func (s *Storage) SaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error) {
	query := `
        INSERT INTO saved_opportunities (vendor_id, opportunity_id)
        VALUES ($1, $2)
        ON CONFLICT (vendor_id, opportunity_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, vendorID, opportunityID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnsaveOpportunity удаляет закладку; отсутствие записи не ошибка.
func (s *Storage) UnsaveOpportunity(ctx context.Context, vendorID int64, opportunityID string) (bool, error) {
	query := `DELETE FROM saved_opportunities WHERE vendor_id = $1 AND opportunity_id = $2`
	res, err := s.db.ExecContext(ctx, query, vendorID, opportunityID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) ListSavedOpportunities(ctx context.Context, vendorID int64) ([]models.Opportunity, error) {
	opps := []models.Opportunity{}
	query := `
        SELECT ` + prefixColumns("o", opportunityColumns) + `
        FROM saved_opportunities so
        JOIN opportunities o ON so.opportunity_id = o.id
        WHERE so.vendor_id = $1
        ORDER BY so.saved_at DESC`
	if err := s.db.SelectContext(ctx, &opps, query, vendorID); err != nil {
		return nil, err
	}
	return opps, nil
}
