package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestSuccessKeepsURLsUnescaped(t *testing.T) {
	c, w := newTestContext()
	SuccessWithMsg(c, "ok", gin.H{"qr_image_url": "https://pixgo.org/qr?a=1&b=2"})

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"qr_image_url":"https://pixgo.org/qr?a=1&b=2"`) {
		t.Fatalf("url should not be escaped, body=%s", body)
	}
	if strings.Contains(body, `"error"`) {
		t.Fatalf("success body should omit error, body=%s", body)
	}
}

func TestErrorEnvelope(t *testing.T) {
	c, w := newTestContext()
	NotFound(c, "Route not found: /x")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status want 404 got %d", w.Code)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got["success"] != false || got["error"] != CodeNotFound || got["message"] != "Route not found: /x" {
		t.Fatalf("unexpected body %v", got)
	}
	if _, ok := got["data"]; ok {
		t.Fatalf("data should be omitted, got %v", got)
	}
}

func TestAbortWithError(t *testing.T) {
	c, w := newTestContext()
	appErr := WrapError(http.StatusBadRequest, CodeLimitExceeded, "Limit exceeded", errors.New("provider said no"))
	appErr.Data = gin.H{"current_limit": 100}
	AbortWithError(c, appErr)

	if !c.IsAborted() {
		t.Fatalf("context should be aborted")
	}
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"current_limit":100`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if appErr.Error() != "Limit exceeded: provider said no" {
		t.Fatalf("unexpected error text %s", appErr.Error())
	}
}
