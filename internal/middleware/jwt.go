package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

// ContextAuthKey is the gin context key storing the resolved models.AuthContext.
const ContextAuthKey = "authContext"

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		SetAuthContext(c, models.AuthContextFromClaims(claims))
		c.Next()
	}
}

// AuthFromContext returns the caller identity stored by JWT.
func AuthFromContext(c *gin.Context) (models.AuthContext, bool) {
	value, exists := c.Get(ContextAuthKey)
	if !exists {
		return models.AuthContext{}, false
	}
	auth, ok := value.(models.AuthContext)
	return auth, ok
}

// SetAuthContext stores the caller identity on the context.
func SetAuthContext(c *gin.Context, auth models.AuthContext) {
	c.Set(ContextAuthKey, auth)
}


func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
