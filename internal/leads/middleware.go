package leads

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"agency_backoffice_backend/platform/config"

	"github.com/gin-gonic/gin"
)

const (
	headerWebhookSecret    = "X-Webhook-Secret"
	headerWebhookSignature = "X-Webhook-Signature"

	// maxWebhookBodyBytes bounds webhook payloads; the route is public and
	// real deliveries are a few KB.
	maxWebhookBodyBytes = 1 << 20

	// ContextRawPayloadKey carries the raw request body from the auth
	// middleware to the handler, which needs the exact bytes both for
	// normalization and for archiving.
	ContextRawPayloadKey = "webhookRawPayload"
)

// WebhookAuthMiddleware verifies inbound dialer deliveries.
//
// In AuthModeVerified a delivery must carry either the shared secret header
// or an HMAC-SHA256 signature ("sha256=<hex>") computed over the raw body
// with the same secret. AuthModeOpen accepts everything; that permissive
// default is a deliberate configuration state for environments where the
// dialer cannot be configured to sign.
func WebhookAuthMiddleware(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(ContextRawPayloadKey, body)

		if cfg.GetWebhookAuthMode() == config.AuthModeOpen {
			c.Next()
			return
		}

		secret := cfg.GetWebhookSecret()

		if provided := c.GetHeader(headerWebhookSecret); provided != "" {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1 {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}

		if signature := c.GetHeader(headerWebhookSignature); signature != "" {
			if verifySignature(signature, body, secret) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing webhook credentials"})
	}
}

func verifySignature(header string, body []byte, secret string) bool {
	provided := strings.TrimPrefix(header, "sha256=")
	if provided == header || provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected))
}
