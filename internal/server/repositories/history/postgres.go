package history

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error) {
	q :=
		`INSERT INTO order_history (order_id, author_id, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, q, entry.OrderID, entry.AuthorID, entry.Text).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ListByOrder(ctx context.Context, orderID int64) ([]*models.HistoryEntry, error) {
	q :=
		`SELECT h.id, h.order_id, h.author_id, u.name, h.description, h.created_at
		 FROM order_history h
		 JOIN users u ON u.id = h.author_id
		 WHERE h.order_id = $1
		 ORDER BY h.created_at DESC, h.id DESC`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		e := &models.HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.OrderID, &e.AuthorID, &e.AuthorName, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
