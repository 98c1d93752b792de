package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// internalTokenHeader carries the shared secret for operator endpoints
const internalTokenHeader = "X-Internal-Token"

// InternalAuthConfig configures the internal API authentication middleware
type InternalAuthConfig struct {
	// Token is the shared secret expected in the X-Internal-Token header
	Token string
	// SkipPathPrefixes lists path prefixes exempt from the check. Partner
	// webhooks authenticate with their own signatures and must stay open.
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// InternalAuth returns a middleware requiring a shared-secret header on
// every route not covered by a skip prefix
func InternalAuth(cfg InternalAuthConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	expected := []byte(cfg.Token)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		presented := c.GetHeader(internalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			logger.Warn("Rejected request with invalid internal token",
				zap.String("path", path),
				zap.String("request_id", c.GetString(RequestIDKey)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing or invalid internal API token",
				},
			})
			return
		}

		c.Next()
	}
}
