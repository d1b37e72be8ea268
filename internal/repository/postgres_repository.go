package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
)

type PostgresLinkRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPostgresLinkRepository wraps an open pool. Every query runs under
// queryTimeout; zero disables the per-query deadline.
func NewPostgresLinkRepository(db *sql.DB, queryTimeout time.Duration) *PostgresLinkRepository {
	return &PostgresLinkRepository{
		db:           db,
		queryTimeout: queryTimeout,
	}
}

func (r *PostgresLinkRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *PostgresLinkRepository) ready(op string) error {
	if r.db == nil {
		return apperrors.StoreUnavailable(op, errors.New("database handle is not configured"))
	}
	return nil
}

func (r *PostgresLinkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	if err := r.ready("find link"); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
	SELECT id, code, url, clicks, created_at, last_clicked
	FROM links
	WHERE code = $1
	`

	link := &model.Link{}
	var lastClicked sql.NullTime
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&link.ID,
		&link.Code,
		&link.URL,
		&link.Clicks,
		&link.CreatedAt,
		&lastClicked,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, classifyError("find link", err)
	}

	if lastClicked.Valid {
		t := lastClicked.Time
		link.LastClicked = &t
	}
	return link, nil
}

func (r *PostgresLinkRepository) IncrementClicks(ctx context.Context, code string, now time.Time) error {
	if err := r.ready("increment clicks"); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	// Ссылку могли удалить между поиском и обновлением, 0 строк - не ошибка
	query := `
	UPDATE links
	SET clicks = clicks + 1, last_clicked = $2
	WHERE code = $1
	`

	if _, err := r.db.ExecContext(ctx, query, code, now); err != nil {
		return classifyError("increment clicks", err)
	}
	return nil
}

func (r *PostgresLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.ready("create link"); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	// Атомарная вставка
	query := `
	INSERT INTO links (id, code, url, clicks, created_at, last_clicked)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (code) DO NOTHING
	RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ID,
		link.Code,
		link.URL,
		link.Clicks,
		link.CreatedAt,
		link.LastClicked,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrCodeExists
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrCodeExists
		}
		return classifyError("create link", err)
	}

	return nil
}

func (r *PostgresLinkRepository) Delete(ctx context.Context, code string) error {
	if err := r.ready("delete link"); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE code = $1`, code)
	if err != nil {
		return classifyError("delete link", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classifyError("delete link", err)
	}
	if n == 0 {
		return fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	return nil
}

func (r *PostgresLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	if err := r.ready("list links"); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
	SELECT id, code, url, clicks, created_at, last_clicked
	FROM links
	ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyError("list links", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0)
	for rows.Next() {
		link := &model.Link{}
		var lastClicked sql.NullTime
		if err := rows.Scan(&link.ID, &link.Code, &link.URL, &link.Clicks, &link.CreatedAt, &lastClicked); err != nil {
			return nil, classifyError("list links", err)
		}
		if lastClicked.Valid {
			t := lastClicked.Time
			link.LastClicked = &t
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError("list links", err)
	}
	return links, nil
}

func (r *PostgresLinkRepository) Ping(ctx context.Context) error {
	if err := r.ready("ping"); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return apperrors.StoreUnavailable("ping", err)
	}
	return nil
}
