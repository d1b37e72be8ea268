package repository

import (
	"context"
	"time"

	"github.com/Kosench/shortlink/internal/model"
)

// LinkRepository is the Link Store. Implementations must be safe for
// concurrent use.
//
// Errors wrap the sentinels from internal/errors: ErrLinkNotFound,
// ErrCodeExists and ErrStoreUnavailable.
type LinkRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Link, error)

	// IncrementClicks adds one click and sets lastClicked to now.
	// A code that no longer exists is not an error.
	IncrementClicks(ctx context.Context, code string, now time.Time) error

	Create(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, code string) error

	// ListAll returns every link, newest first.
	ListAll(ctx context.Context) ([]*model.Link, error)

	Ping(ctx context.Context) error
}
