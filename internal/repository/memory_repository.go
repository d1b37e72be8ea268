package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
)

// MemoryLinkRepository keeps links in process memory. Nothing survives a
// restart.
type MemoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*model.Link
}

func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		links: make(map[string]*model.Link),
	}
}

func (r *MemoryLinkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("find link", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return nil, fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	return link.Clone(), nil
}

func (r *MemoryLinkRepository) IncrementClicks(ctx context.Context, code string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return classifyError("increment clicks", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return nil
	}
	link.Clicks++
	t := now
	link.LastClicked = &t
	return nil
}

func (r *MemoryLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := ctx.Err(); err != nil {
		return classifyError("create link", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.Code]; exists {
		return apperrors.ErrCodeExists
	}
	r.links[link.Code] = link.Clone()
	return nil
}

func (r *MemoryLinkRepository) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return classifyError("delete link", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[code]; !exists {
		return fmt.Errorf("link with code '%s': %w", code, apperrors.ErrLinkNotFound)
	}
	delete(r.links, code)
	return nil
}

func (r *MemoryLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("list links", err)
	}

	r.mu.RLock()
	links := make([]*model.Link, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, link.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (r *MemoryLinkRepository) Ping(ctx context.Context) error {
	return nil
}
