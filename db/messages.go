package db

import (
	"context"

	"bizconnect/models"
)

// Папки сообщений
const (
	BoxInbox = "inbox"
	BoxSent  = "sent"
)

func (s *Storage) CreateMessage(ctx context.Context, m *models.Message) error {
	query := `
        INSERT INTO messages (sender_id, receiver_id, opportunity_id, subject, body)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, is_read, created_at`
	err := s.db.QueryRowxContext(ctx, query, m.SenderID, m.ReceiverID, m.OpportunityID, m.Subject, m.Body).
		Scan(&m.ID, &m.IsRead, &m.CreatedAt)
	return mapError(err)
}

// ListMessages: входящие или отправленные пользователя, свежие первыми.
func (s *Storage) ListMessages(ctx context.Context, userID int64, box string) ([]models.MessageView, error) {
	column := "m.receiver_id"
	if box == BoxSent {
		column = "m.sender_id"
	}
	query := `
        SELECT m.id, m.sender_id, m.receiver_id, m.opportunity_id, m.subject, m.body, m.is_read, m.created_at,
            COALESCE(su.business_name, su.organization_name, su.email) AS sender_name,
            COALESCE(ru.business_name, ru.organization_name, ru.email) AS receiver_name,
            o.title AS opportunity_title
        FROM messages m
        LEFT JOIN users su ON m.sender_id = su.id
        LEFT JOIN users ru ON m.receiver_id = ru.id
        LEFT JOIN opportunities o ON m.opportunity_id = o.id
        WHERE ` + column + ` = $1
        ORDER BY m.created_at DESC`

	msgs := []models.MessageView{}
	if err := s.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Storage) MarkMessageRead(ctx context.Context, id int64) error {
	query := `UPDATE messages SET is_read = TRUE WHERE id = $1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

func (s *Storage) DeleteMessage(ctx context.Context, id int64) error {
	query := `DELETE FROM messages WHERE id = $1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}
