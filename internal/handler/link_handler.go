package handler

import (
	"context"
	"net/http"

	"github.com/Kosench/shortlink/internal/model"
	"github.com/gin-gonic/gin"
)

type LinkService interface {
	CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.Link, error)
	GetLink(ctx context.Context, code string) (*model.Link, error)
	DeleteLink(ctx context.Context, code string) error
	ListLinks(ctx context.Context) ([]*model.Link, error)
}

type LinkHandler struct {
	links LinkService
}

func NewLinkHandler(links LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

// Register mounts the JSON API under group.
func (h *LinkHandler) Register(group *gin.RouterGroup) {
	group.POST("/links", h.CreateLink)
	group.GET("/links", h.ListLinks)
	group.GET("/links/:code", h.GetLink)
	group.DELETE("/links/:code", h.DeleteLink)
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	link, err := h.links.CreateLink(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.links.ListLinks(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.links.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.links.DeleteLink(c.Request.Context(), c.Param("code")); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{Message: "Link deleted successfully"})
}
