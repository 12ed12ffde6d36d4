package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/YouXam/ucloud-bot/internal/constants"
	apierrors "github.com/YouXam/ucloud-bot/internal/errors"
)

// RequireWebhookSecret rejects updates that do not carry the secret token
// registered with setWebhook. Mismatches look like an unknown route. An empty
// secret disables the check.
func RequireWebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		got := c.GetHeader(constants.SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			apierrors.NotFound(c, "Not Found.")
			return
		}
		c.Next()
	}
}
