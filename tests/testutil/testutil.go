package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestContext bundles a gin test context with its response recorder.
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext creates a fresh gin test context.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return &TestContext{Context: c, Recorder: w}
}

// ResponseBody returns the raw response body.
func (tc *TestContext) ResponseBody() []byte {
	return tc.Recorder.Body.Bytes()
}

// StatusCode returns the recorded response status.
func (tc *TestContext) StatusCode() int {
	return tc.Recorder.Code
}

// Set stores a value in the gin context, mirroring what middleware
// would do in a real request.
func (tc *TestContext) Set(key string, value any) {
	tc.Context.Set(key, value)
}

// TestRunID returns a stable run ID for tests that need determinism.
func TestRunID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}
