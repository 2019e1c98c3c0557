package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
)

const noteConstraint = "orders_note_id_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectOrder = `SELECT o.id, o.note_id, n.title, n.image_path, o.admin_id, u.name, o.description, o.status, o.created_at
	FROM orders o
	JOIN notes n ON n.id = o.note_id
	JOIN users u ON u.id = o.admin_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	o := &models.Order{}
	var status string
	err := row.Scan(&o.ID, &o.NoteID, &o.NoteTitle, &o.NoteImage, &o.AdminID, &o.AdminName, &o.Description, &status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.Status(status)
	return o, nil
}

func (r *PostgresRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	q :=
		`INSERT INTO orders (note_id, admin_id, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, status, created_at`

	var status string
	err := r.db.QueryRowContext(ctx, q, order.NoteID, order.AdminID, order.Description).
		Scan(&order.ID, &status, &order.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, noteConstraint) {
			return nil, common.ErrOrderAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	order.Status = models.Status(status)
	return order, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.id = $1`, id)
}

func (r *PostgresRepository) GetByNote(ctx context.Context, noteID int64) (*models.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.note_id = $1`, noteID)
}

func (r *PostgresRepository) getOne(ctx context.Context, q string, arg any) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.lock(ctx, id, "UPDATE")
}

func (r *PostgresRepository) LockForShare(ctx context.Context, id int64) (*models.Order, error) {
	return r.lock(ctx, id, "SHARE")
}

func (r *PostgresRepository) lock(ctx context.Context, id int64, strength string) (*models.Order, error) {
	q := `SELECT id, note_id, admin_id, description, status, created_at
		 FROM orders
		 WHERE id = $1
		 FOR ` + strength

	o := &models.Order{}
	var status string
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&o.ID, &o.NoteID, &o.AdminID, &o.Description, &status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	o.Status = models.Status(status)
	return o, nil
}

func (r *PostgresRepository) List(ctx context.Context, p query.Predicate) ([]*models.Order, error) {
	if p.Empty {
		return []*models.Order{}, nil
	}

	where, args := p.SQL("o.status", "o.created_at", 1)
	q := selectOrder + ` WHERE ` + where + ` ORDER BY o.created_at DESC, o.id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
