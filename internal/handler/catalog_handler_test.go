package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

type fakeCatalogSrv struct {
	names   map[string]string
	renamed string
	deleted string
}

func (f *fakeCatalogSrv) List(context.Context) ([]models.Department, error) {
	items := make([]models.Department, 0, len(f.names))
	for id, name := range f.names {
		items = append(items, models.Department{ID: id, Name: name})
	}
	return items, nil
}

func (f *fakeCatalogSrv) Get(_ context.Context, id string) (*models.Department, error) {
	name, ok := f.names[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}
	return &models.Department{ID: id, Name: name}, nil
}

func (f *fakeCatalogSrv) Create(_ context.Context, req models.NamedEntityRequest) (*models.Department, error) {
	for _, name := range f.names {
		if strings.EqualFold(name, req.Name) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department already exists")
		}
	}
	f.names["dep-new"] = req.Name
	return &models.Department{ID: "dep-new", Name: req.Name}, nil
}

func (f *fakeCatalogSrv) Rename(_ context.Context, id string, req models.NamedEntityRequest) (*models.Department, error) {
	f.renamed = id
	return &models.Department{ID: id, Name: req.Name}, nil
}

func (f *fakeCatalogSrv) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func TestCatalogHandlerCreate(t *testing.T) {
	srv := &fakeCatalogSrv{names: map[string]string{"dep-1": "Sales"}}
	handler := NewDepartmentHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/departments", strings.NewReader(`{"name":"Finance"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Create(withAuth(c, hrAuth))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/departments", strings.NewReader(`{"name":"sales"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Create(withAuth(c, hrAuth))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCatalogHandlerGetRenameDelete(t *testing.T) {
	srv := &fakeCatalogSrv{names: map[string]string{"dep-1": "Sales"}}
	handler := NewDepartmentHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/departments/dep-2", nil)
	c.AddParam("id", "dep-2")
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestContext(http.MethodPatch, "/departments/dep-1", strings.NewReader(`{"name":"Sales EMEA"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.AddParam("id", "dep-1")
	handler.Rename(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dep-1", srv.renamed)

	c, rec = newTestContext(http.MethodDelete, "/departments/dep-1", nil)
	c.AddParam("id", "dep-1")
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "dep-1", srv.deleted)
}
