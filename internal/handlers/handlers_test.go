package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/presence"
	"github.com/carelink-health/signaling/internal/signaling"
)

func newTestHandlers(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := New(presence.NewRegistry(), signaling.NewRelay(), nil, zap.NewNop(),
		30*time.Second, 25*time.Second, 10*time.Minute)
	router := gin.New()
	h.Register(router, nil, nil)
	return h, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustMessage(t *testing.T, from, to, sdp string) signaling.Message {
	t.Helper()
	m := signaling.Message{From: from, To: to, Kind: signaling.KindOffer, SDP: sdp}
	if err := m.Validate(); err != nil {
		t.Fatalf("invalid test message: %v", err)
	}
	return m
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}
