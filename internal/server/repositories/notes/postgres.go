package notes

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectNote = `SELECT n.id, n.author_id, u.name, n.title, n.description, n.image_path, n.status, n.created_at
	FROM notes n
	JOIN users u ON u.id = n.author_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner, withAuthor bool) (*models.Note, error) {
	n := &models.Note{}
	var status string
	var err error
	if withAuthor {
		err = row.Scan(&n.ID, &n.AuthorID, &n.AuthorName, &n.Title, &n.Description, &n.ImagePath, &status, &n.CreatedAt)
	} else {
		err = row.Scan(&n.ID, &n.AuthorID, &n.Title, &n.Description, &n.ImagePath, &status, &n.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	n.Status = models.Status(status)
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	q :=
		`INSERT INTO notes (author_id, title, description, image_path)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, status, created_at`

	var status string
	err := r.db.QueryRowContext(ctx, q, note.AuthorID, note.Title, note.Description, note.ImagePath).
		Scan(&note.ID, &status, &note.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	note.Status = models.Status(status)
	return note, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, selectNote+` WHERE n.id = $1`, id), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int64) (*models.Note, error) {
	q :=
		`SELECT id, author_id, title, description, image_path, status, created_at
		 FROM notes
		 WHERE id = $1
		 FOR UPDATE`

	n, err := scanNote(r.db.QueryRowContext(ctx, q, id), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, p query.Predicate) ([]*models.Note, error) {
	if p.Empty {
		return []*models.Note{}, nil
	}

	where, args := p.SQL("n.status", "n.created_at", 1)
	q := selectNote + ` WHERE ` + where + ` ORDER BY n.created_at DESC, n.id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows, true)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	return r.exec(ctx, `UPDATE notes SET status = $1 WHERE id = $2`, string(status), id)
}

func (r *PostgresRepository) UpdateImage(ctx context.Context, id int64, imagePath string) error {
	return r.exec(ctx, `UPDATE notes SET image_path = $1 WHERE id = $2`, imagePath, id)
}

func (r *PostgresRepository) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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
