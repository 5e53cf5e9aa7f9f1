package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

type catalogRepository[T any] interface {
	List(ctx context.Context) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	NameExists(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, name string) (*T, error)
	Rename(ctx context.Context, id, name string) (*T, error)
	Delete(ctx context.Context, id string) error
}

// CatalogService manages a named lookup list such as departments or positions.
// Names are unique ignoring case.
type CatalogService[T any] struct {
	repo      catalogRepository[T]
	label     string
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// DepartmentService manages departments.
type DepartmentService = CatalogService[models.Department]

// PositionService manages positions.
type PositionService = CatalogService[models.Position]

// NewDepartmentService constructs the department catalog.
func NewDepartmentService(repo catalogRepository[models.Department], cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	return newCatalogService(repo, "department", cache, validate, logger)
}

// NewPositionService constructs the position catalog.
func NewPositionService(repo catalogRepository[models.Position], cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PositionService {
	return newCatalogService(repo, "position", cache, validate, logger)
}

func newCatalogService[T any](repo catalogRepository[T], label string, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CatalogService[T] {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService[T]{repo: repo, label: label, cache: cache, validator: validate, logger: logger}
}

// List returns all entries ordered by name.
func (s *CatalogService[T]) List(ctx context.Context) ([]T, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list "+s.label+"s")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get returns one entry.
func (s *CatalogService[T]) Get(ctx context.Context, id string) (*T, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load "+s.label)
	}
	return item, nil
}

// Create adds a new entry.
func (s *CatalogService[T]) Create(ctx context.Context, req models.NamedEntityRequest) (*T, error) {
	name, err := s.checkName(ctx, req, "")
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create "+s.label)
	}
	return item, nil
}

// Rename changes the entry's name.
func (s *CatalogService[T]) Rename(ctx context.Context, id string, req models.NamedEntityRequest) (*T, error) {
	name, err := s.checkName(ctx, req, id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Rename(ctx, id, name)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to rename "+s.label)
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	return item, nil
}

// Delete removes the entry; employees and templates referencing it are detached.
func (s *CatalogService[T]) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.notFoundOr(err, "failed to delete "+s.label)
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	return nil
}

func (s *CatalogService[T]) checkName(ctx context.Context, req models.NamedEntityRequest, excludeID string) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	exists, err := s.repo.NameExists(ctx, req.Name, excludeID)
	if err != nil {
		return "", appErrors.Internal(err, "failed to check "+s.label+" name")
	}
	if exists {
		return "", appErrors.Clone(appErrors.ErrConflict, s.label+" with this name already exists")
	}
	return req.Name, nil
}

func (s *CatalogService[T]) notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, s.label+" not found")
	}
	return appErrors.Internal(err, message)
}
