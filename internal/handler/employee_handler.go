package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

const photoFormField = "photo"

type employeeService interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Employee, error)
	CreateWithUser(ctx context.Context, actor models.AuthContext, req models.CreateEmployeeWithUserRequest) (*models.Employee, error)
	Update(ctx context.Context, actor models.AuthContext, id string, req models.UpdateEmployeeRequest) (*models.Employee, error)
	Deactivate(ctx context.Context, actor models.AuthContext, id string) error
	Profile(ctx context.Context, actor models.AuthContext) (*models.Employee, error)
	UpdateProfile(ctx context.Context, actor models.AuthContext, req models.UpdateProfileRequest) (*models.Employee, error)
	NotificationSettings(ctx context.Context, actor models.AuthContext) (*models.NotificationSettings, error)
	UpdateNotificationSettings(ctx context.Context, actor models.AuthContext, req models.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error)
	UploadPhoto(ctx context.Context, actor models.AuthContext, filename string, r io.Reader) (*models.Employee, error)
	DeletePhoto(ctx context.Context, actor models.AuthContext) error
}

// EmployeeHandler manages employee endpoints.
type EmployeeHandler struct {
	service employeeService
}

// NewEmployeeHandler constructs handler.
func NewEmployeeHandler(svc employeeService) *EmployeeHandler {
	return &EmployeeHandler{service: svc}
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Param search query string false "Search by name or email"
// @Param department_id query string false "Department"
// @Param position_id query string false "Position"
// @Param active query bool false "Active flag"
// @Param sort query string false "Sort field"
// @Param order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	filter := models.EmployeeFilter{
		Search:       c.Query("search"),
		DepartmentID: c.Query("department_id"),
		PositionID:   c.Query("position_id"),
		Active:       queryBool(c, "active"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "limit", 20),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}

	employees, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, pagination)
}

// Get godoc
// @Summary Get employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// CreateWithUser godoc
// @Summary Create employee with login
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body models.CreateEmployeeWithUserRequest true "Employee payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /employees/create-with-user [post]
func (h *EmployeeHandler) CreateWithUser(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.CreateEmployeeWithUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	employee, err := h.service.CreateWithUser(c.Request.Context(), auth, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, employee)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body models.UpdateEmployeeRequest true "Employee payload"
// @Success 200 {object} response.Envelope
// @Router /employees/{id} [patch]
func (h *EmployeeHandler) Update(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	employee, err := h.service.Update(c.Request.Context(), auth, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// Delete godoc
// @Summary Deactivate employee
// @Tags Employees
// @Param id path string true "Employee ID"
// @Success 204 {object} response.Envelope
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), auth, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Profile godoc
// @Summary Current employee profile
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /employees/me/profile [get]
func (h *EmployeeHandler) Profile(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	employee, err := h.service.Profile(c.Request.Context(), auth)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// UpdateProfile godoc
// @Summary Update current employee profile
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /employees/me/profile [patch]
func (h *EmployeeHandler) UpdateProfile(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	employee, err := h.service.UpdateProfile(c.Request.Context(), auth, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// NotificationSettings godoc
// @Summary Notification preferences
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /employees/me/notification-settings [get]
func (h *EmployeeHandler) NotificationSettings(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	settings, err := h.service.NotificationSettings(c.Request.Context(), auth)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateNotificationSettings godoc
// @Summary Update notification preferences
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body models.UpdateNotificationSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /employees/me/notification-settings [patch]
func (h *EmployeeHandler) UpdateNotificationSettings(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.UpdateNotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	settings, err := h.service.UpdateNotificationSettings(c.Request.Context(), auth, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UploadPhoto godoc
// @Summary Upload profile photo
// @Tags Employees
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /employees/me/photo [post]
func (h *EmployeeHandler) UploadPhoto(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	header, err := c.FormFile(photoFormField)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "photo file required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read photo"))
		return
	}
	defer file.Close()

	employee, err := h.service.UploadPhoto(c.Request.Context(), auth, strings.TrimSpace(header.Filename), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// DeletePhoto godoc
// @Summary Remove profile photo
// @Tags Employees
// @Success 204 {object} response.Envelope
// @Router /employees/me/photo [delete]
func (h *EmployeeHandler) DeletePhoto(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	if err := h.service.DeletePhoto(c.Request.Context(), auth); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
