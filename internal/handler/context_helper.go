package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/middleware"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type languageResolver interface {
	Resolve(explicit, acceptLanguage string) string
}

// currentAuth returns the caller identity or writes 401.
func currentAuth(c *gin.Context) (models.AuthContext, bool) {
	auth, ok := middleware.AuthFromContext(c)
	if !ok || auth.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.AuthContext{}, false
	}
	return auth, true
}

// requestLanguage picks ?lang= first, then Accept-Language.
func requestLanguage(c *gin.Context, resolver languageResolver) string {
	explicit := strings.TrimSpace(c.Query("lang"))
	if resolver == nil {
		return explicit
	}
	return resolver.Resolve(explicit, c.GetHeader("Accept-Language"))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := strings.TrimSpace(c.Query(key)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func queryBool(c *gin.Context, key string) *bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
