package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/markr-hq/markr-api/pkg/config"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
	"github.com/markr-hq/markr-api/pkg/response"
)

// BasicAuth protects routes with HTTP basic auth. When a bcrypt hash is
// configured it takes precedence over the plaintext password.
func BasicAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !credentialsMatch(cfg, username, password) {
			c.Header("WWW-Authenticate", `Basic realm="markr"`)
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func credentialsMatch(cfg config.AuthConfig, username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) != 1 {
		return false
	}
	if cfg.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
}
