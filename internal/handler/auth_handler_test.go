package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

type fakeAuthSrv struct {
	login         models.LoginRequest
	loginErr      error
	logoutToken   string
	logoutUser    string
	changedFor    string
	passwordReq   models.ChangePasswordRequest
	refreshedWith string
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900, User: models.UserInfo{ID: "user-1", Email: req.Email}}, nil
}

func (f *fakeAuthSrv) RefreshToken(_ context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	f.refreshedWith = req.RefreshToken
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (f *fakeAuthSrv) Logout(_ context.Context, refreshToken, userID string, _ models.LoginRequest) error {
	f.logoutToken, f.logoutUser = refreshToken, userID
	return nil
}

func (f *fakeAuthSrv) ChangePassword(_ context.Context, userID string, req models.ChangePasswordRequest) error {
	f.changedFor, f.passwordReq = userID, req
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"hr@example.com","password":"secret123"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("User-Agent", "handler-test")

	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hr@example.com", srv.login.Email)
	assert.Equal(t, "handler-test", srv.login.UserAgent)
	assert.NotEmpty(t, srv.login.IP)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, "access", data["access_token"])
	assert.EqualValues(t, 900, data["expires_in"])
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrInvalidCredentials})
	c, rec := newTestContext(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"hr@example.com","password":"nope"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error["code"])
}

func TestAuthHandlerRefresh(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"refresh"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Refresh(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refresh", srv.refreshedWith)
}

func TestAuthHandlerLogoutRequiresToken(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/auth/logout", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Logout(withAuth(c, employeeAuth))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.logoutToken)
}

func TestAuthHandlerLogout(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/auth/logout", strings.NewReader(`{"refresh_token":"refresh"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Logout(withAuth(c, employeeAuth))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "refresh", srv.logoutToken)
	assert.Equal(t, employeeAuth.UserID, srv.logoutUser)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/employees/me/change-password", strings.NewReader(`{"old_password":"secret123","new_password":"secret456"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.ChangePassword(withAuth(c, employeeAuth))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, employeeAuth.UserID, srv.changedFor)
	assert.Equal(t, "secret456", srv.passwordReq.NewPassword)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})
	c, rec := newTestContext(http.MethodGet, "/auth/me", nil)

	handler.Me(withAuth(c, hrAuth))

	require.Equal(t, http.StatusOK, rec.Code)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, "user-hr", data["id"])
	assert.Equal(t, "emp-hr", data["employee_id"])
	assert.Equal(t, "hr", data["role"])
}
