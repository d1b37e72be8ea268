package repository

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Kosench/shortlink/internal/cache"
	"github.com/Kosench/shortlink/internal/model"
	"golang.org/x/sync/singleflight"
)

// cachedTarget - неизменяемая часть ссылки, которой достаточно для редиректа.
// Счетчики кликов в кэш не попадают, поэтому клик кэш не инвалидирует.
type cachedTarget struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

func targetOf(link *model.Link) cachedTarget {
	return cachedTarget{ID: link.ID, Code: link.Code, URL: link.URL, CreatedAt: link.CreatedAt}
}

func (t cachedTarget) link() *model.Link {
	return &model.Link{ID: t.ID, Code: t.Code, URL: t.URL, CreatedAt: t.CreatedAt}
}

// CachedLinkRepository - репозиторий с кэшированием поверх любого LinkRepository.
// Ошибки кэша только логируются, источником истины остается next.
//
// The LinkRepository methods always read next, so API reads see fresh
// click counts. Redirect lookups go through Targets.
type CachedLinkRepository struct {
	next  LinkRepository
	cache cache.Cache
	keys  *cache.KeyBuilder
	group singleflight.Group

	// generations[code] растет при каждой инвалидации; заполнение кэша,
	// начатое до инвалидации, пропускается
	mu          sync.Mutex
	generations map[string]uint64
}

func NewCachedLinkRepository(next LinkRepository, c cache.Cache, keys *cache.KeyBuilder) *CachedLinkRepository {
	return &CachedLinkRepository{
		next:        next,
		cache:       c,
		keys:        keys,
		generations: make(map[string]uint64),
	}
}

// Targets returns the read-through finder used by the redirect resolver.
// Links it returns carry id, code, url and createdAt only.
func (r *CachedLinkRepository) Targets() *TargetFinder {
	return &TargetFinder{repo: r}
}

type TargetFinder struct {
	repo *CachedLinkRepository
}

// FindByCode сначала проверяет кэш, параллельные промахи по одному коду
// схлопываются в один запрос к хранилищу
func (f *TargetFinder) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	return f.repo.findTarget(ctx, code)
}

func (r *CachedLinkRepository) findTarget(ctx context.Context, code string) (*model.Link, error) {
	cacheKey := r.keys.Link(code)

	var cached cachedTarget
	err := r.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		return cached.link(), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Cache error: %v", err)
	}

	v, err, _ := r.group.Do(code, func() (interface{}, error) {
		// отмена одного запроса не должна ронять остальных ожидающих
		shared := context.WithoutCancel(ctx)
		gen := r.generation(code)

		link, err := r.next.FindByCode(shared, code)
		if err != nil {
			return nil, err
		}

		target := targetOf(link)
		r.fill(shared, code, gen, target)
		return target, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(cachedTarget).link(), nil
}

func (r *CachedLinkRepository) generation(code string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[code]
}

// fill пишет в кэш, только если с момента чтения из стора код не инвалидировали
func (r *CachedLinkRepository) fill(ctx context.Context, code string, gen uint64, target cachedTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generations[code] != gen {
		return
	}
	if err := r.cache.Set(ctx, r.keys.Link(code), target); err != nil {
		log.Printf("Failed to cache link: %v", err)
	}
}

func (r *CachedLinkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	return r.next.FindByCode(ctx, code)
}

// IncrementClicks не трогает кэш: в нем нет счетчиков
func (r *CachedLinkRepository) IncrementClicks(ctx context.Context, code string, now time.Time) error {
	return r.next.IncrementClicks(ctx, code, now)
}

func (r *CachedLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.next.Create(ctx, link); err != nil {
		return err
	}

	r.fill(ctx, link.Code, r.generation(link.Code), targetOf(link))
	return nil
}

func (r *CachedLinkRepository) Delete(ctx context.Context, code string) error {
	err := r.next.Delete(ctx, code)
	// устаревшую запись в кэше убираем в любом случае
	r.invalidate(ctx, code)
	return err
}

func (r *CachedLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	return r.next.ListAll(ctx)
}

func (r *CachedLinkRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *CachedLinkRepository) invalidate(ctx context.Context, code string) {
	r.mu.Lock()
	r.generations[code]++
	r.mu.Unlock()

	// новые запросы не должны присоединяться к чтению, начатому до удаления
	r.group.Forget(code)

	if err := r.cache.Delete(context.WithoutCancel(ctx), r.keys.Link(code)); err != nil {
		log.Printf("Failed to invalidate link cache: %v", err)
	}
}
