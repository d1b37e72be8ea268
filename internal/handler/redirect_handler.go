package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/Kosench/shortlink/internal/resolver"
	"github.com/gin-gonic/gin"
)

type Resolver interface {
	Resolve(ctx context.Context, segment string) resolver.Outcome
}

// RedirectHandler serves the short code redirect. It is mounted as the
// router fallback, so every path no other route claimed ends up here.
type RedirectHandler struct {
	resolver Resolver
}

func NewRedirectHandler(r Resolver) *RedirectHandler {
	return &RedirectHandler{resolver: r}
}

func (h *RedirectHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		writeError(c, http.StatusNotFound, messageNotFound)
		return
	}

	// Весь путь без ведущего слэша должен быть кодом: "/abc1234/x" не подходит
	segment := strings.TrimPrefix(c.Request.URL.Path, "/")

	out := h.resolver.Resolve(c.Request.Context(), segment)
	switch out.Kind {
	case resolver.Redirect:
		c.Redirect(out.Status, out.TargetURL)
	case resolver.NotApplicable:
		writeError(c, http.StatusNotFound, messageNotFound)
	default:
		writeError(c, out.Status, out.Message)
	}
}
