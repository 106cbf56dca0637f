package leads

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"agency_backoffice_backend/platform/config"
)

type webhookConfigStub struct {
	secret string
	mode   config.AuthMode
	dev    bool
}

func (s webhookConfigStub) GetWebhookSecret() string          { return s.secret }
func (s webhookConfigStub) GetWebhookAuthMode() config.AuthMode { return s.mode }
func (s webhookConfigStub) IsDevelopment() bool               { return s.dev }

func webhookTestRouter(cfg config.WebhookConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", WebhookAuthMiddleware(cfg), func(c *gin.Context) {
		raw, _ := c.Get(ContextRawPayloadKey)
		body, _ := raw.([]byte)
		c.JSON(http.StatusOK, gin.H{"bytes": len(body)})
	})
	return r
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookAuthOpenMode(t *testing.T) {
	r := webhookTestRouter(webhookConfigStub{mode: config.AuthModeOpen})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"lead_id":"L-1"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestWebhookAuthSharedSecret(t *testing.T) {
	cfg := webhookConfigStub{secret: "top-secret", mode: config.AuthModeVerified}
	r := webhookTestRouter(cfg)

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"correct secret", "top-secret", http.StatusOK},
		{"wrong secret", "guess", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
			req.Header.Set("X-Webhook-Secret", tt.secret)
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWebhookAuthSignature(t *testing.T) {
	const secret = "signing-key"
	body := `{"lead_id":"L-2","phone":"5551234567"}`
	r := webhookTestRouter(webhookConfigStub{secret: secret, mode: config.AuthModeVerified})

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid signature", signBody(secret, body), http.StatusOK},
		{"valid signature uppercase hex", strings.ToUpper(signBody(secret, body)[7:]), http.StatusOK},
		{"wrong key", signBody("other-key", body), http.StatusUnauthorized},
		{"missing prefix", strings.TrimPrefix(signBody(secret, body), "sha256="), http.StatusUnauthorized},
		{"garbage", "sha256=zzzz", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.signature
			if tt.name == "valid signature uppercase hex" {
				sig = "sha256=" + sig
			}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			req.Header.Set("X-Webhook-Signature", sig)
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWebhookAuthMissingCredentials(t *testing.T) {
	r := webhookTestRouter(webhookConfigStub{secret: "s", mode: config.AuthModeVerified})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestWebhookAuthPreservesBodyForHandler(t *testing.T) {
	body := `{"lead_id":"L-3"}`
	r := webhookTestRouter(webhookConfigStub{mode: config.AuthModeOpen})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"bytes":17`) {
		t.Errorf("handler saw body %s, want 17 raw bytes", w.Body.String())
	}
}

func TestWebhookAuthRejectsOversizedBody(t *testing.T) {
	r := webhookTestRouter(webhookConfigStub{mode: config.AuthModeOpen})

	w := httptest.NewRecorder()
	body := strings.NewReader(strings.Repeat("x", maxWebhookBodyBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/webhook", body)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}
