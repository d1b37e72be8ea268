package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
	"github.com/Kosench/shortlink/internal/repository"
	"github.com/Kosench/shortlink/internal/utils"
	"github.com/google/uuid"
)

// Коды, совпадающие с именами маршрутов верхнего уровня
var reservedCodes = map[string]struct{}{
	"healthz": {},
}

type CodeGenerator interface {
	Generate() string
}

type LinkService struct {
	repo       repository.LinkRepository
	generator  CodeGenerator
	maxRetries int
	now        func() time.Time
}

func NewLinkService(repo repository.LinkRepository, generator CodeGenerator, maxRetries int) *LinkService {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &LinkService{
		repo:       repo,
		generator:  generator,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// CreateLink stores a new link. A custom code that is taken fails with
// ErrCodeExists; generated codes are retried up to maxRetries times.
func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.Link, error) {
	rawURL := utils.SanitizeInput(req.URL)
	if err := utils.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Code)
	if code != "" {
		if err := utils.ValidateShortCode(code); err != nil {
			return nil, err
		}
		if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
			return nil, apperrors.NewValidationError("code", "Code is reserved")
		}

		link := s.newLink(code, rawURL)
		if err := s.repo.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		link := s.newLink(s.generator.Generate(), rawURL)

		err := s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, apperrors.ErrCodeExists) {
			return nil, err
		}
		log.Printf("Generated code %s collided, retrying (%d/%d)", link.Code, attempt+1, s.maxRetries)
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxRetries, apperrors.ErrCodeGeneration)
}

func (s *LinkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	if !utils.IsValidShortCode(code) {
		return nil, apperrors.ErrLinkNotFound
	}
	return s.repo.FindByCode(ctx, code)
}

func (s *LinkService) DeleteLink(ctx context.Context, code string) error {
	if !utils.IsValidShortCode(code) {
		return apperrors.ErrLinkNotFound
	}
	return s.repo.Delete(ctx, code)
}

func (s *LinkService) ListLinks(ctx context.Context) ([]*model.Link, error) {
	return s.repo.ListAll(ctx)
}

func (s *LinkService) newLink(code, rawURL string) *model.Link {
	return &model.Link{
		ID:        uuid.NewString(),
		Code:      code,
		URL:       rawURL,
		Clicks:    0,
		CreatedAt: s.now().UTC(),
	}
}
