package github

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const pushEventPayload = `{"ref":"refs/heads/1.1.x","after":"8ad9dec4298f6b8f020997373cf4fe22005f2c06","repository":{"name":"app","owner":{"login":"octo"}}}`

const deliveryID = "3355fab0-b22c-11eb-9936-51d9540c0cdc"

func newWebhookReq(t *testing.T, eventType, payload, secret string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/listener/github", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(github.EventTypeHeader, eventType)
	req.Header.Set(github.DeliveryIDHeader, deliveryID)

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		_, err := mac.Write([]byte(payload))
		require.NoError(t, err)
		req.Header.Set(github.SHA256SignatureHeader, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	return req
}

func TestHTTPHandlerEventParsing(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	evChan := make(chan *Event, 1)
	provider := New(evChan, WithPayloadSecret("secret"))

	respRecorder := httptest.NewRecorder()
	provider.HTTPHandler(respRecorder, newWebhookReq(t, "push", pushEventPayload, "secret"))
	require.Equal(t, http.StatusOK, respRecorder.Code)

	event := <-evChan

	assert.Equal(t, pushEventPayload, string(event.JSON))
	assert.Equal(t, deliveryID, event.DeliveryID)
	assert.Equal(t, "push", event.Type)

	pushEv, ok := event.Event.(*github.PushEvent)
	require.True(t, ok, "event has type %T, expected *github.PushEvent", event.Event)
	assert.Equal(t, "refs/heads/1.1.x", pushEv.GetRef())
}

func TestHTTPHandlerRejectsInvalidSignature(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	evChan := make(chan *Event, 1)
	provider := New(evChan, WithPayloadSecret("secret"))

	respRecorder := httptest.NewRecorder()
	provider.HTTPHandler(respRecorder, newWebhookReq(t, "push", pushEventPayload, "wrong"))
	assert.Equal(t, http.StatusBadRequest, respRecorder.Code)
	assert.Empty(t, evChan)
}

func TestHTTPHandlerRejectsUnparseablePayload(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	evChan := make(chan *Event, 1)
	provider := New(evChan)

	respRecorder := httptest.NewRecorder()
	provider.HTTPHandler(respRecorder, newWebhookReq(t, "push", `{"ref":`, ""))
	assert.Equal(t, http.StatusBadRequest, respRecorder.Code)
	assert.Empty(t, evChan)
}

func TestHTTPHandlerQueueFull(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	evChan := make(chan *Event)
	provider := New(evChan)

	respRecorder := httptest.NewRecorder()
	provider.HTTPHandler(respRecorder, newWebhookReq(t, "push", pushEventPayload, ""))
	assert.Equal(t, http.StatusServiceUnavailable, respRecorder.Code)
}
