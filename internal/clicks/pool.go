package clicks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type PoolConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each store update. Updates never inherit the request
	// context, the response is usually written before they run.
	Timeout time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:   4,
		QueueSize: 1024,
		Timeout:   5 * time.Second,
	}
}

type Stats struct {
	Recorded int64 `json:"recorded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Queued   int   `json:"queued"`
}

type update struct {
	code string
	at   time.Time
}

// Pool - асинхронная запись кликов. Record никогда не блокируется: при
// переполненной очереди обновление отбрасывается.
type Pool struct {
	config PoolConfig
	store  Store
	queue  chan update
	quit   chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool

	recorded atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

func NewPool(store Store, cfg PoolConfig) *Pool {
	def := DefaultPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &Pool{
		config: cfg,
		store:  store,
		queue:  make(chan update, cfg.QueueSize),
		quit:   make(chan struct{}),
	}
}

func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool is already running")
	}
	p.running = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}

	log.Printf("[clicks] Worker pool started with %d workers, queue size %d", p.config.Workers, p.config.QueueSize)
	return nil
}

// Record enqueues the update. ctx is not used for the write itself.
func (p *Pool) Record(_ context.Context, code string, now time.Time) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		p.dropped.Add(1)
		return ErrPoolStopped
	}

	select {
	case p.queue <- update{code: code, at: now}:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops accepting updates and drains the queue until ctx is done.
// Updates still queued after that are lost.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[clicks] Queue drained, %d updates recorded", p.recorded.Load())
		return nil
	case <-ctx.Done():
		close(p.quit)
		log.Printf("[clicks] Timeout draining queue, %d updates lost", len(p.queue))
		return ctx.Err()
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Recorded: p.recorded.Load(),
		Failed:   p.failed.Load(),
		Dropped:  p.dropped.Load(),
		Queued:   len(p.queue),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case u, ok := <-p.queue:
			if !ok {
				return
			}
			p.apply(id, u)
		}
	}
}

func (p *Pool) apply(workerID int, u update) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	if err := p.store.IncrementClicks(ctx, u.code, u.at); err != nil {
		p.failed.Add(1)
		log.Printf("[clicks] worker-%d: failed to record click for %s: %v", workerID, u.code, err)
		return
	}
	p.recorded.Add(1)
}
