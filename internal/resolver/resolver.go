// Package resolver decides what to do with an inbound path segment: redirect
// to the stored target, report a miss, or report that the store is down.
package resolver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
	"github.com/Kosench/shortlink/internal/utils"
)

type Kind int

const (
	// NotApplicable - сегмент не похож на код, запрос идет дальше по роутингу
	NotApplicable Kind = iota
	Redirect
	NotFound
	StoreUnavailable
	UnexpectedFailure
)

func (k Kind) String() string {
	switch k {
	case NotApplicable:
		return "not_applicable"
	case Redirect:
		return "redirect"
	case NotFound:
		return "not_found"
	case StoreUnavailable:
		return "store_unavailable"
	case UnexpectedFailure:
		return "unexpected_failure"
	default:
		return "unknown"
	}
}

const (
	MessageNotFound         = "Link not found"
	MessageStoreUnavailable = "Database connection error"
	MessageInternal         = "Internal server error"
)

type Outcome struct {
	Kind      Kind
	TargetURL string
	Status    int
	Message   string
	// Err is the underlying failure for logging. Never shown to clients.
	Err error
}

type LinkFinder interface {
	FindByCode(ctx context.Context, code string) (*model.Link, error)
}

type ClickRecorder interface {
	Record(ctx context.Context, code string, now time.Time) error
}

type Resolver struct {
	links    LinkFinder
	recorder ClickRecorder
	clock    Clock
}

type Option func(*Resolver)

func WithClock(c Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

func New(links LinkFinder, recorder ClickRecorder, opts ...Option) *Resolver {
	r := &Resolver{
		links:    links,
		recorder: recorder,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks the segment up exactly once. Click accounting never changes
// the outcome: its failures are logged and dropped.
func (r *Resolver) Resolve(ctx context.Context, segment string) Outcome {
	if !utils.IsValidShortCode(segment) {
		return Outcome{Kind: NotApplicable}
	}

	link, err := r.links.FindByCode(ctx, segment)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrLinkNotFound):
		return Outcome{Kind: NotFound, Status: http.StatusNotFound, Message: MessageNotFound}
	case apperrors.IsStoreUnavailable(err):
		log.Printf("[resolver] store unavailable resolving %s: %v", segment, err)
		return Outcome{Kind: StoreUnavailable, Status: http.StatusServiceUnavailable, Message: MessageStoreUnavailable, Err: err}
	default:
		log.Printf("[resolver] failed to resolve %s: %v", segment, err)
		return Outcome{Kind: UnexpectedFailure, Status: http.StatusInternalServerError, Message: MessageInternal, Err: err}
	}

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, link.Code, r.clock.Now()); err != nil {
			log.Printf("[resolver] click accounting failed for %s: %v", link.Code, err)
		}
	}

	return Outcome{Kind: Redirect, TargetURL: link.URL, Status: http.StatusFound}
}
