package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	appErr "holdem-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, handler gin.HandlerFunc) (int, Body) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Header(headerRequestID, "req-1")
		handler(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, body
}

func TestFailMapsServiceErrors(t *testing.T) {
	code, body := serve(t, func(c *gin.Context) {
		Fail(c, fmt.Errorf("%w: %w", appErr.ErrNotYourTurn, appErr.ErrHandEnded))
	})
	if code != http.StatusConflict || body.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d / %d", code, body.Code)
	}
	if body.Msg != "not your turn: hand already ended" {
		t.Fatalf("unexpected msg %q", body.Msg)
	}
	if body.RequestID != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", body.RequestID)
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	var recorded int
	code, body := serve(t, func(c *gin.Context) {
		Fail(c, fmt.Errorf("dial tcp: connection refused"))
		recorded = len(c.Errors)
	})
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if body.Msg != "internal error" {
		t.Fatalf("internal detail leaked: %q", body.Msg)
	}
	if recorded != 1 {
		t.Fatalf("expected the error on the context, got %d", recorded)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	code, body := serve(t, func(c *gin.Context) {
		Success(c, nil)
	})
	if code != http.StatusOK || body.Msg != "" {
		t.Fatalf("unexpected envelope %d %+v", code, body)
	}
	if _, ok := body.Data.(map[string]interface{}); !ok {
		t.Fatalf("expected empty object data, got %T", body.Data)
	}
}
