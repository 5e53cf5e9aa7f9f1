package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

type fakeEmployeeRepo struct {
	employees   map[string]*models.Employee
	emails      map[string]bool
	createdUser *models.User
	listFilter  models.EmployeeFilter
	photoSet    *string
	deactivated []string
}

func newFakeEmployeeRepo(employees ...models.Employee) *fakeEmployeeRepo {
	repo := &fakeEmployeeRepo{employees: map[string]*models.Employee{}, emails: map[string]bool{}}
	for i := range employees {
		e := employees[i]
		repo.employees[e.ID] = &e
		repo.emails[e.Email] = true
	}
	return repo
}

func (f *fakeEmployeeRepo) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	f.listFilter = filter
	out := make([]models.Employee, 0, len(f.employees))
	for _, e := range f.employees {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeEmployeeRepo) ListActive(ctx context.Context) ([]models.Employee, error) {
	out := make([]models.Employee, 0, len(f.employees))
	for _, e := range f.employees {
		if e.Active {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (f *fakeEmployeeRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return f.emails[email], nil
}

func (f *fakeEmployeeRepo) CreateWithUser(ctx context.Context, user *models.User, employee *models.Employee) error {
	user.ID = "user-new"
	employee.ID = "emp-new"
	employee.UserID = user.ID
	f.createdUser = user
	clone := *employee
	f.employees[employee.ID] = &clone
	return nil
}

func (f *fakeEmployeeRepo) Update(ctx context.Context, employee *models.Employee) error {
	clone := *employee
	f.employees[employee.ID] = &clone
	return nil
}

func (f *fakeEmployeeRepo) UpdateProfile(ctx context.Context, employee *models.Employee) error {
	return f.Update(ctx, employee)
}

func (f *fakeEmployeeRepo) UpdatePhoto(ctx context.Context, id string, photoPath *string) error {
	e, ok := f.employees[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.PhotoPath = photoPath
	f.photoSet = photoPath
	return nil
}

func (f *fakeEmployeeRepo) Deactivate(ctx context.Context, id string) error {
	e, ok := f.employees[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Active = false
	f.deactivated = append(f.deactivated, id)
	return nil
}

type fakeAuditWriter struct {
	logs []*models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakePhotoStore struct {
	saved   map[string][]byte
	removed []string
}

func (f *fakePhotoStore) SaveStream(bucket, name string, r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxBytes {
		return "", appErrors.Clone(appErrors.ErrPayloadTooLarge, "too large")
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = data
	return name, nil
}

func (f *fakePhotoStore) Remove(bucket, rel string) {
	f.removed = append(f.removed, rel)
}

func (f *fakePhotoStore) URL(bucket string, rel *string) string {
	if rel == nil {
		return ""
	}
	return "/files/" + bucket + "/" + *rel
}

func sampleEmployee(id string, birth birthday.Date) models.Employee {
	return models.Employee{
		ID:                   id,
		UserID:               "user-" + id,
		Email:                id + "@example.com",
		FirstName:            "First" + id,
		LastName:             "Last" + id,
		BirthDate:            birth,
		Active:               true,
		Role:                 models.RoleEmployee,
		NotificationSettings: models.DefaultNotificationSettings(),
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestEmployeeServiceCreateWithUser(t *testing.T) {
	repo := newFakeEmployeeRepo()
	audit := &fakeAuditWriter{}
	svc := NewEmployeeService(repo, audit, &fakePhotoStore{}, nil, PhotoPolicy{}, nil, zap.NewNop())

	created, err := svc.CreateWithUser(context.Background(), models.AuthContext{UserID: "hr-1"}, models.CreateEmployeeWithUserRequest{
		Email:     "New.Person@Example.com",
		Password:  "supersecret",
		FirstName: "Anna",
		LastName:  "Petrova",
		BirthDate: "1992-02-29",
	})
	require.NoError(t, err)
	assert.Equal(t, "emp-new", created.ID)
	assert.Equal(t, "new.person@example.com", created.Email)
	assert.Equal(t, birthday.MustDate(1992, 2, 29), created.BirthDate)
	assert.Equal(t, models.RoleEmployee, created.Role)
	assert.True(t, created.ReceiveEmail)
	require.NotNil(t, repo.createdUser)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdUser.PasswordHash), []byte("supersecret")))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEmployeeCreate, audit.logs[0].Action)
}

func TestEmployeeServiceCreateRejectsInvalidBirthDate(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())

	_, err := svc.CreateWithUser(context.Background(), models.AuthContext{}, models.CreateEmployeeWithUserRequest{
		Email:     "x@example.com",
		Password:  "supersecret",
		FirstName: "X",
		LastName:  "Y",
		BirthDate: "2001-02-29",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDate.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceCreateConflict(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())

	_, err := svc.CreateWithUser(context.Background(), models.AuthContext{}, models.CreateEmployeeWithUserRequest{
		Email:     "e1@example.com",
		Password:  "supersecret",
		FirstName: "X",
		LastName:  "Y",
		BirthDate: "1990-01-01",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUpdate(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, &fakeAuditWriter{}, nil, nil, PhotoPolicy{}, nil, zap.NewNop())

	name := "Maria"
	birth := "1985-12-31"
	role := models.RoleHR
	updated, err := svc.Update(context.Background(), models.AuthContext{UserID: "hr"}, "e1", models.UpdateEmployeeRequest{FirstName: &name, BirthDate: &birth, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Maria", updated.FirstName)
	assert.Equal(t, birthday.MustDate(1985, 12, 31), updated.BirthDate)
	assert.Equal(t, models.RoleHR, updated.Role)

	_, err = svc.Update(context.Background(), models.AuthContext{}, "missing", models.UpdateEmployeeRequest{FirstName: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceDeactivate(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())

	err := svc.Deactivate(context.Background(), models.AuthContext{EmployeeID: "e1"}, "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Deactivate(context.Background(), models.AuthContext{EmployeeID: "hr"}, "e1"))
	assert.Equal(t, []string{"e1"}, repo.deactivated)

	err = svc.Deactivate(context.Background(), models.AuthContext{}, "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceProfileRequiresLinkedEmployee(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())

	_, err := svc.Profile(context.Background(), models.AuthContext{UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUpdateNotificationSettings(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())
	actor := models.AuthContext{EmployeeID: "e1"}

	hidden := false
	sendTime := "08:30"
	settings, err := svc.UpdateNotificationSettings(context.Background(), actor, models.UpdateNotificationSettingsRequest{ShowBirthdayPublic: &hidden, SendTime: &sendTime})
	require.NoError(t, err)
	assert.False(t, settings.ShowBirthdayPublic)
	assert.Equal(t, "08:30", settings.SendTime)
	assert.True(t, settings.ReceiveEmail)

	bad := "25:00"
	_, err = svc.UpdateNotificationSettings(context.Background(), actor, models.UpdateNotificationSettingsRequest{SendTime: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUploadPhoto(t *testing.T) {
	old := "e1/old.png"
	employee := sampleEmployee("e1", birthday.MustDate(1990, 1, 1))
	employee.PhotoPath = &old
	repo := newFakeEmployeeRepo(employee)
	files := &fakePhotoStore{}
	svc := NewEmployeeService(repo, nil, files, nil, PhotoPolicy{MaxBytes: 1024, AllowedMIMEs: []string{"image/png"}}, nil, zap.NewNop())
	actor := models.AuthContext{EmployeeID: "e1"}

	updated, err := svc.UploadPhoto(context.Background(), actor, "me.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.NotNil(t, repo.photoSet)
	assert.True(t, strings.HasPrefix(*repo.photoSet, "e1/"))
	assert.True(t, strings.HasSuffix(*repo.photoSet, ".png"))
	assert.Equal(t, pngHeader, files.saved[*repo.photoSet])
	assert.Equal(t, []string{old}, files.removed)
	assert.Contains(t, updated.PhotoURL, *repo.photoSet)
}

func TestEmployeeServiceUploadPhotoRejectsType(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, nil, &fakePhotoStore{}, nil, PhotoPolicy{AllowedMIMEs: []string{"image/png"}}, nil, zap.NewNop())

	_, err := svc.UploadPhoto(context.Background(), models.AuthContext{EmployeeID: "e1"}, "notes.txt", strings.NewReader("just some text"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUploadPhotoTooLarge(t *testing.T) {
	repo := newFakeEmployeeRepo(sampleEmployee("e1", birthday.MustDate(1990, 1, 1)))
	svc := NewEmployeeService(repo, nil, &fakePhotoStore{}, nil, PhotoPolicy{MaxBytes: 8, AllowedMIMEs: []string{"image/png"}}, nil, zap.NewNop())

	_, err := svc.UploadPhoto(context.Background(), models.AuthContext{EmployeeID: "e1"}, "big.png", bytes.NewReader(pngHeader))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.photoSet)
}

func TestEmployeeServiceDeletePhoto(t *testing.T) {
	path := "e1/p.png"
	employee := sampleEmployee("e1", birthday.MustDate(1990, 1, 1))
	employee.PhotoPath = &path
	repo := newFakeEmployeeRepo(employee)
	files := &fakePhotoStore{}
	svc := NewEmployeeService(repo, nil, files, nil, PhotoPolicy{}, nil, zap.NewNop())

	require.NoError(t, svc.DeletePhoto(context.Background(), models.AuthContext{EmployeeID: "e1"}))
	assert.Nil(t, repo.employees["e1"].PhotoPath)
	assert.Equal(t, []string{path}, files.removed)
}

func TestEmployeeServiceListRejectsSortOrder(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), nil, nil, nil, PhotoPolicy{}, nil, zap.NewNop())
	_, _, err := svc.List(context.Background(), models.EmployeeFilter{SortOrder: "sideways"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
