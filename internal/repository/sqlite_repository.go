package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
	"gorm.io/gorm"
)

// SQLiteLinkRepository is the single-file store for local runs and tests.
type SQLiteLinkRepository struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

func NewSQLiteLinkRepository(db *gorm.DB, queryTimeout time.Duration) *SQLiteLinkRepository {
	return &SQLiteLinkRepository{
		db:           db,
		queryTimeout: queryTimeout,
	}
}

func (r *SQLiteLinkRepository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return r.db.WithContext(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	return r.db.WithContext(ctx), cancel
}

func (r *SQLiteLinkRepository) ready(op string) error {
	if r.db == nil {
		return apperrors.StoreUnavailable(op, errors.New("database handle is not configured"))
	}
	return nil
}

func (r *SQLiteLinkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	if err := r.ready("find link"); err != nil {
		return nil, err
	}
	db, cancel := r.session(ctx)
	defer cancel()

	var link model.Link
	err := db.Where("code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, classifyError("find link", err)
	}
	return &link, nil
}

func (r *SQLiteLinkRepository) IncrementClicks(ctx context.Context, code string, now time.Time) error {
	if err := r.ready("increment clicks"); err != nil {
		return err
	}
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Model(&model.Link{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"clicks":       gorm.Expr("clicks + 1"),
			"last_clicked": now,
		}).Error
	if err != nil {
		return classifyError("increment clicks", err)
	}
	return nil
}

func (r *SQLiteLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.ready("create link"); err != nil {
		return err
	}
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return apperrors.ErrCodeExists
		}
		return classifyError("create link", err)
	}
	return nil
}

func (r *SQLiteLinkRepository) Delete(ctx context.Context, code string) error {
	if err := r.ready("delete link"); err != nil {
		return err
	}
	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Where("code = ?", code).Delete(&model.Link{})
	if res.Error != nil {
		return classifyError("delete link", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	return nil
}

func (r *SQLiteLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	if err := r.ready("list links"); err != nil {
		return nil, err
	}
	db, cancel := r.session(ctx)
	defer cancel()

	links := make([]*model.Link, 0)
	if err := db.Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, classifyError("list links", err)
	}
	return links, nil
}

func (r *SQLiteLinkRepository) Ping(ctx context.Context) error {
	if err := r.ready("ping"); err != nil {
		return err
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.StoreUnavailable("ping", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.StoreUnavailable("ping", err)
	}
	return nil
}
