package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type catalogService[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, req models.NamedEntityRequest) (*T, error)
	Rename(ctx context.Context, id string, req models.NamedEntityRequest) (*T, error)
	Delete(ctx context.Context, id string) error
}

// CatalogHandler serves a named lookup table such as departments or positions.
type CatalogHandler[T any] struct {
	service catalogService[T]
}

// NewDepartmentHandler constructs the departments handler.
func NewDepartmentHandler(svc catalogService[models.Department]) *CatalogHandler[models.Department] {
	return &CatalogHandler[models.Department]{service: svc}
}

// NewPositionHandler constructs the positions handler.
func NewPositionHandler(svc catalogService[models.Position]) *CatalogHandler[models.Position] {
	return &CatalogHandler[models.Position]{service: svc}
}

// List godoc
// @Summary List departments or positions
// @Tags Catalogs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
// @Router /positions [get]
func (h *CatalogHandler[T]) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get department or position
// @Tags Catalogs
// @Produce json
// @Param id path string true "ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [get]
// @Router /positions/{id} [get]
func (h *CatalogHandler[T]) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create department or position
// @Tags Catalogs
// @Accept json
// @Produce json
// @Param payload body models.NamedEntityRequest true "Name"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /departments [post]
// @Router /positions [post]
func (h *CatalogHandler[T]) Create(c *gin.Context) {
	var req models.NamedEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Rename godoc
// @Summary Rename department or position
// @Tags Catalogs
// @Accept json
// @Produce json
// @Param id path string true "ID"
// @Param payload body models.NamedEntityRequest true "Name"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [patch]
// @Router /positions/{id} [patch]
func (h *CatalogHandler[T]) Rename(c *gin.Context) {
	var req models.NamedEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.service.Rename(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete department or position
// @Tags Catalogs
// @Param id path string true "ID"
// @Success 204 {object} response.Envelope
// @Router /departments/{id} [delete]
// @Router /positions/{id} [delete]
func (h *CatalogHandler[T]) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
