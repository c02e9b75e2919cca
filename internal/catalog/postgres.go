package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"protein-advisor/internal/common/config"
	"protein-advisor/internal/common/database"

	"github.com/lib/pq"
)

// PostgresSource reads the product table from a SQL table whose column names
// match the sheet headers. Rows are ordered by product id.
type PostgresSource struct {
	db    *database.PostgresClient
	table string
}

func NewPostgresSource(db *database.PostgresClient, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Name() string { return config.CatalogSourcePostgres }

func (s *PostgresSource) query() string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		pq.QuoteIdentifier(s.table), pq.QuoteIdentifier(ColProductID))
}

func (s *PostgresSource) FetchTable(ctx context.Context) (*Table, error) {
	rows, err := s.db.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("postgres: query %s: %w", s.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}

	table := &Table{Columns: columns}
	values := make([]sql.NullString, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if values[i].Valid {
				row[col] = values[i].String
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return table, nil
}
