package middleware

import (
	"strings"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/services"
	"camrelay/pkg/errors"
	"camrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextSubjectKey = "subject"
	ContextRoleKey    = "role"
)

func abortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter because browsers cannot set headers on WebSocket upgrades.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// AuthMiddleware requires a valid bearer token carrying at least required.
func AuthMiddleware(authService services.AuthService, required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithAppError(c, errors.NewUnauthorizedError("bearer token required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithAppError(c, errors.NewUnauthorizedError(err.Error()))
			return
		}

		if err := authService.Authorize(claims, required); err != nil {
			abortWithAppError(c, errors.NewForbiddenError("insufficient role"))
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextRoleKey, claims.Role)
		c.Request = c.Request.WithContext(logger.WithSubject(c.Request.Context(), claims.Subject))
		c.Next()
	}
}
