package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

// RosterCacheKey holds the cached active employee roster used by birthday views.
const RosterCacheKey = "birthdays:roster"

type employeeRepository interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateWithUser(ctx context.Context, user *models.User, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	UpdateProfile(ctx context.Context, employee *models.Employee) error
	UpdatePhoto(ctx context.Context, id string, photoPath *string) error
	Deactivate(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type photoStore interface {
	SaveStream(bucket, name string, r io.Reader, maxBytes int64) (string, error)
	Remove(bucket, rel string)
	URL(bucket string, rel *string) string
}

// PhotoPolicy bounds employee photo uploads.
type PhotoPolicy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

// EmployeeService manages employee records, self-service profiles and photos.
type EmployeeService struct {
	repo      employeeRepository
	audit     auditWriter
	files     photoStore
	cache     *CacheService
	policy    PhotoPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(repo employeeRepository, audit auditWriter, files photoStore, cache *CacheService, policy PhotoPolicy, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = 5 << 20
	}
	if len(policy.AllowedMIMEs) == 0 {
		policy.AllowedMIMEs = []string{"image/jpeg", "image/png"}
	}
	return &EmployeeService{repo: repo, audit: audit, files: files, cache: cache, policy: policy, validator: validate, logger: logger}
}

// List returns employees with pagination metadata.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	if filter.SortOrder != "" && !strings.EqualFold(filter.SortOrder, "asc") && !strings.EqualFold(filter.SortOrder, "desc") {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "sort_order must be asc or desc")
	}
	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list employees")
	}
	for i := range employees {
		s.decorate(&employees[i])
	}
	return employees, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Internal(err, "failed to load employee")
	}
	s.decorate(employee)
	return employee, nil
}

// CreateWithUser creates the login account and the employee profile together.
func (s *EmployeeService) CreateWithUser(ctx context.Context, actor models.AuthContext, req models.CreateEmployeeWithUserRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	birthDate, err := birthday.ParseDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "birth_date must be a valid YYYY-MM-DD date")
	}
	hireDate, err := parseOptionalDate(req.HireDate, "hire_date")
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}

	user := &models.User{Email: email, PasswordHash: string(hash), Role: role, Active: true}
	employee := &models.Employee{
		Email:                email,
		FirstName:            strings.TrimSpace(req.FirstName),
		LastName:             strings.TrimSpace(req.LastName),
		MiddleName:           strings.TrimSpace(req.MiddleName),
		BirthDate:            birthDate,
		HireDate:             hireDate,
		DepartmentID:         req.DepartmentID,
		PositionID:           req.PositionID,
		Active:               true,
		Role:                 role,
		NotificationSettings: models.DefaultNotificationSettings(),
	}
	if err := s.repo.CreateWithUser(ctx, user, employee); err != nil {
		return nil, appErrors.Internal(err, "failed to create employee")
	}

	s.cache.Invalidate(ctx, RosterCacheKey)
	s.record(ctx, actor, models.AuditActionEmployeeCreate, employee.ID, map[string]interface{}{"email": email, "role": role})
	return s.Get(ctx, employee.ID)
}

// Update applies an HR-side partial update.
func (s *EmployeeService) Update(ctx context.Context, actor models.AuthContext, id string, req models.UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		employee.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		employee.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.MiddleName != nil {
		employee.MiddleName = strings.TrimSpace(*req.MiddleName)
	}
	if req.BirthDate != nil {
		birthDate, err := birthday.ParseDate(*req.BirthDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "birth_date must be a valid YYYY-MM-DD date")
		}
		employee.BirthDate = birthDate
	}
	if req.HireDate != nil {
		hireDate, err := parseOptionalDate(*req.HireDate, "hire_date")
		if err != nil {
			return nil, err
		}
		employee.HireDate = hireDate
	}
	if req.DepartmentID != nil {
		employee.DepartmentID = emptyToNil(*req.DepartmentID)
	}
	if req.PositionID != nil {
		employee.PositionID = emptyToNil(*req.PositionID)
	}
	if req.Role != nil {
		employee.Role = *req.Role
	}
	if req.Active != nil {
		employee.Active = *req.Active
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Internal(err, "failed to update employee")
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	s.record(ctx, actor, models.AuditActionEmployeeUpdate, id, req)
	return s.Get(ctx, id)
}

// Deactivate soft-deletes the employee and signs their account out.
func (s *EmployeeService) Deactivate(ctx context.Context, actor models.AuthContext, id string) error {
	if actor.EmployeeID != "" && actor.EmployeeID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Internal(err, "failed to deactivate employee")
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	s.record(ctx, actor, models.AuditActionEmployeeDelete, id, nil)
	return nil
}

// Profile returns the caller's own employee record.
func (s *EmployeeService) Profile(ctx context.Context, actor models.AuthContext) (*models.Employee, error) {
	if actor.EmployeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no employee profile linked to this account")
	}
	return s.Get(ctx, actor.EmployeeID)
}

// UpdateProfile lets an employee change their name and preferences.
func (s *EmployeeService) UpdateProfile(ctx context.Context, actor models.AuthContext, req models.UpdateProfileRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	employee, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		employee.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		employee.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.MiddleName != nil {
		employee.MiddleName = strings.TrimSpace(*req.MiddleName)
	}
	req.UpdateNotificationSettingsRequest.Apply(&employee.NotificationSettings)
	return s.saveProfile(ctx, employee)
}

// NotificationSettings returns the caller's preferences.
func (s *EmployeeService) NotificationSettings(ctx context.Context, actor models.AuthContext) (*models.NotificationSettings, error) {
	employee, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	settings := employee.NotificationSettings
	return &settings, nil
}

// UpdateNotificationSettings patches the caller's preferences.
func (s *EmployeeService) UpdateNotificationSettings(ctx context.Context, actor models.AuthContext, req models.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	employee, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	req.Apply(&employee.NotificationSettings)
	saved, err := s.saveProfile(ctx, employee)
	if err != nil {
		return nil, err
	}
	settings := saved.NotificationSettings
	return &settings, nil
}

func (s *EmployeeService) saveProfile(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	if err := s.repo.UpdateProfile(ctx, employee); err != nil {
		return nil, appErrors.Internal(err, "failed to update profile")
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	return s.Get(ctx, employee.ID)
}

// UploadPhoto stores a new photo for the caller, replacing any previous one.
func (s *EmployeeService) UploadPhoto(ctx context.Context, actor models.AuthContext, filename string, r io.Reader) (*models.Employee, error) {
	employee, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Internal(err, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "photo file is empty")
	}
	mime := http.DetectContentType(head)
	if !s.allowedMIME(mime) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "photo must be one of: "+strings.Join(s.policy.AllowedMIMEs, ", "))
	}

	name := employee.ID + "/" + uuid.NewString() + photoExtension(filename, mime)
	rel, err := s.files.SaveStream(BucketPhotos, name, io.MultiReader(bytes.NewReader(head), r), s.policy.MaxBytes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePhoto(ctx, employee.ID, &rel); err != nil {
		s.files.Remove(BucketPhotos, rel)
		return nil, appErrors.Internal(err, "failed to save photo")
	}
	if employee.PhotoPath != nil {
		s.files.Remove(BucketPhotos, *employee.PhotoPath)
	}
	s.cache.Invalidate(ctx, RosterCacheKey)
	return s.Get(ctx, employee.ID)
}

// DeletePhoto clears the caller's photo.
func (s *EmployeeService) DeletePhoto(ctx context.Context, actor models.AuthContext) error {
	employee, err := s.Profile(ctx, actor)
	if err != nil {
		return err
	}
	if employee.PhotoPath == nil {
		return nil
	}
	if err := s.repo.UpdatePhoto(ctx, employee.ID, nil); err != nil {
		return appErrors.Internal(err, "failed to clear photo")
	}
	s.files.Remove(BucketPhotos, *employee.PhotoPath)
	s.cache.Invalidate(ctx, RosterCacheKey)
	return nil
}

func (s *EmployeeService) allowedMIME(mime string) bool {
	for _, allowed := range s.policy.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(allowed), mime) {
			return true
		}
	}
	return false
}

func (s *EmployeeService) decorate(employee *models.Employee) {
	if s.files != nil {
		employee.PhotoURL = s.files.URL(BucketPhotos, employee.PhotoPath)
	}
}

func (s *EmployeeService) record(ctx context.Context, actor models.AuthContext, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: "employee", ResourceID: &resourceID}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record employee audit log", zap.String("action", action), zap.Error(err))
	}
}

func parseOptionalDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := birthday.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, field+" must be a valid YYYY-MM-DD date")
	}
	t := d.Time()
	return &t, nil
}

func emptyToNil(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func photoExtension(filename, mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return strings.ToLower(filepath.Ext(filename))
}
