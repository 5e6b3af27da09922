package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	billingapp "github.com/skyfare/backend/internal/application/billing"
)

func newWebhookRouter(signatureKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := billingapp.NewWebhookService(signatureKey, nil, nil, nil, zap.NewNop())
	h := NewWebhookHandler(service)

	engine := gin.New()
	engine.POST("/webhooks/square", h.HandleSquareEvent)
	return engine
}

func sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(engine *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-square-signature", signature)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	engine := newWebhookRouter("wh-secret")
	body := []byte(`{"type":"invoice.created","event_id":"evt-1"}`)

	resp := postWebhook(engine, body, "not-the-signature")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = postWebhook(engine, body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestWebhookAcknowledgesUnknownEventTypes(t *testing.T) {
	engine := newWebhookRouter("wh-secret")
	body := []byte(`{"type":"subscription.updated","event_id":"evt-2"}`)

	resp := postWebhook(engine, body, sign("wh-secret", body))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"received":true`)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	engine := newWebhookRouter("wh-secret")
	body := []byte(`{broken`)

	resp := postWebhook(engine, body, sign("wh-secret", body))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWebhookAcceptsUnsignedWhenKeyNotConfigured(t *testing.T) {
	engine := newWebhookRouter("")
	body := []byte(`{"type":"invoice.created","event_id":"evt-3"}`)

	resp := postWebhook(engine, body, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}
