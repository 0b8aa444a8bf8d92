package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Column: колонка, добавляемая при старте, если её нет в таблице.
type Column struct {
	Table      string
	Name       string
	Definition string
}

// LateColumns: колонки, появившиеся после первой версии схемы.
var LateColumns = []Column{
	{"users", "status", "TEXT DEFAULT 'active'"},
	{"users", "capability_statement", "TEXT"},
	{"users", "business_description", "TEXT"},
	{"users", "website", "TEXT"},
	{"users", "address", "TEXT"},
	{"users", "city", "TEXT"},
	{"users", "state", "TEXT"},
	{"users", "zip", "TEXT"},
	{"users", "years_in_business", "TEXT"},
	{"users", "certifications", "TEXT"},

	{"opportunities", "attachments", "TEXT"},
	{"opportunities", "duration", "TEXT"},
	{"opportunities", "requirements", "TEXT"},
	{"opportunities", "certifications", "TEXT"},
	{"opportunities", "experience", "TEXT"},
}

// EnsureColumns сверяется с information_schema и добавляет недостающие колонки.
func EnsureColumns(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	existing := map[string]map[string]bool{}

	for _, col := range LateColumns {
		cols, ok := existing[col.Table]
		if !ok {
			var err error
			cols, err = tableColumns(ctx, db, col.Table)
			if err != nil {
				return err
			}
			existing[col.Table] = cols
		}
		if cols[col.Name] {
			continue
		}

		log.Info("adding column", zap.String("table", col.Table), zap.String("column", col.Name))
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.Table, col.Name, col.Definition)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", col.Table, col.Name, err)
		}
		cols[col.Name] = true
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`,
		table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
