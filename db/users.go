package db

import (
	"context"
	"fmt"
	"strings"

	"bizconnect/internal/profile"
	"bizconnect/models"
)

const userColumns = `id, email, password_hash, type, business_name, organization_name, contact_name,
	phone, ein, certification_number, business_description, website, address, city, state, zip,
	years_in_business, certifications, districts, categories, capability_statement, status, created_at`

func hydrateUser(u *models.User) {
	u.Districts = profile.ParseList(u.DistrictsRaw)
	u.Categories = profile.ParseList(u.CategoriesRaw)
}

// CreateUser вставляет пользователя и дочитывает сгенерированные поля.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	status := u.Status
	if status == "" {
		status = models.UserStatusActive
	}
	query := `
        INSERT INTO users
            (email, password_hash, type, business_name, organization_name, contact_name, phone,
             ein, certification_number, address, city, zip, website, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING ` + userColumns
	err := s.db.QueryRowxContext(ctx, query,
		u.Email, u.PasswordHash, u.Type, u.BusinessName, u.OrganizationName, u.ContactName, u.Phone,
		u.EIN, u.CertificationNumber, u.Address, u.City, u.Zip, u.Website, status).
		StructScan(u)
	if err != nil {
		return mapError(err)
	}
	hydrateUser(u)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, u, query, id); err != nil {
		return nil, mapError(err)
	}
	hydrateUser(u)
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := s.db.GetContext(ctx, u, query, email); err != nil {
		return nil, mapError(err)
	}
	hydrateUser(u)
	return u, nil
}

func (s *Storage) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, &count, query, id); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers: каталог с фильтрами. Районы и категории хранятся текстом,
// поэтому ищем подстрокой.
func (s *Storage) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Type != "" {
		conds = append(conds, "type = "+arg(f.Type))
	}
	if f.District != "" {
		conds = append(conds, "districts LIKE "+arg("%"+f.District+"%"))
	}
	if f.Category != "" {
		conds = append(conds, "categories LIKE "+arg("%"+f.Category+"%"))
	}
	if f.Search != "" {
		term := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(business_name ILIKE %s OR organization_name ILIKE %s OR email ILIKE %s)", term, term, term))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	for i := range users {
		hydrateUser(&users[i])
	}
	return users, nil
}

// UpdateProfile обновляет только переданные поля: nil уходит в COALESCE
// и оставляет сохранённое значение.
func (s *Storage) UpdateProfile(ctx context.Context, id int64, p models.ProfileUpdate) (*models.User, error) {
	query := `
        UPDATE users SET
            business_name = COALESCE($1, business_name),
            organization_name = COALESCE($2, organization_name),
            contact_name = COALESCE($3, contact_name),
            phone = COALESCE($4, phone),
            ein = COALESCE($5, ein),
            certification_number = COALESCE($6, certification_number),
            business_description = COALESCE($7, business_description),
            website = COALESCE($8, website),
            address = COALESCE($9, address),
            city = COALESCE($10, city),
            state = COALESCE($11, state),
            zip = COALESCE($12, zip),
            years_in_business = COALESCE($13, years_in_business),
            certifications = COALESCE($14, certifications),
            capability_statement = COALESCE($15, capability_statement),
            districts = COALESCE($16, districts),
            categories = COALESCE($17, categories)
        WHERE id = $18
        RETURNING ` + userColumns
	u := &models.User{}
	err := s.db.QueryRowxContext(ctx, query,
		p.BusinessName, p.OrganizationName, p.ContactName, p.Phone, p.EIN,
		p.CertificationNumber, p.BusinessDescription, p.Website, p.Address, p.City,
		p.State, p.Zip, p.YearsInBusiness, p.Certifications, p.CapabilityStatement,
		p.Districts, p.Categories, id).
		StructScan(u)
	if err != nil {
		return nil, mapError(err)
	}
	hydrateUser(u)
	return u, nil
}

func (s *Storage) SetCapabilityStatement(ctx context.Context, id int64, path string) error {
	query := `UPDATE users SET capability_statement = $1 WHERE id = $2`
	return expectAffected(s.db.ExecContext(ctx, query, path, id))
}

func (s *Storage) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE users SET status = $1 WHERE id = $2`
	return expectAffected(s.db.ExecContext(ctx, query, status, id))
}

// AdminUpdateUser меняет только заданные поля.
func (s *Storage) AdminUpdateUser(ctx context.Context, id int64, upd models.AdminUserUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set("business_name", upd.BusinessName)
	set("organization_name", upd.OrganizationName)
	set("contact_name", upd.ContactName)
	set("phone", upd.Phone)
	set("ein", upd.EIN)
	set("status", upd.Status)
	set("type", upd.Type)
	set("password_hash", upd.PasswordHash)

	if len(sets) == 0 {
		return ErrNoFields
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return expectAffected(s.db.ExecContext(ctx, query, args...))
}

func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

func (s *Storage) CountUsersByType(ctx context.Context, userType string) (int, error) {
	var count int
	query := `SELECT COUNT(1) FROM users WHERE type = $1`
	err := s.db.GetContext(ctx, &count, query, userType)
	return count, err
}

func (s *Storage) RecentUsers(ctx context.Context, limit int) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, err
	}
	for i := range users {
		hydrateUser(&users[i])
	}
	return users, nil
}
