package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runContentTypeCheck(t *testing.T, method, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()

	req := httptest.NewRequest(method, "/api/bookings", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ValidateContentType()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec
}

func TestValidateContentType(t *testing.T) {
	assert.Equal(t, http.StatusOK, runContentTypeCheck(t, http.MethodPost, "application/json", `{}`).Code)
	assert.Equal(t, http.StatusOK, runContentTypeCheck(t, http.MethodPost, "application/json; charset=utf-8", `{}`).Code)
	assert.Equal(t, http.StatusOK, runContentTypeCheck(t, http.MethodPut, "multipart/form-data; boundary=x", "x").Code)

	assert.Equal(t, http.StatusUnsupportedMediaType, runContentTypeCheck(t, http.MethodPost, "text/xml", "<x/>").Code)
	assert.Equal(t, http.StatusUnsupportedMediaType, runContentTypeCheck(t, http.MethodPut, "", "raw").Code)

	// Reads and empty-bodied writes carry no body to validate
	assert.Equal(t, http.StatusOK, runContentTypeCheck(t, http.MethodGet, "", "").Code)
	assert.Equal(t, http.StatusOK, runContentTypeCheck(t, http.MethodPost, "", "").Code)
}

func TestSanitizeHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer secret")
	headers.Set("Cookie", "session=abc")
	headers.Set("X-CSRF-Token", "tok")
	headers.Set("User-Agent", "serbisyo-app/1.0")

	sanitized := SanitizeHeaders(headers)
	assert.Empty(t, sanitized.Get("Authorization"))
	assert.Empty(t, sanitized.Get("Cookie"))
	assert.Empty(t, sanitized.Get("X-CSRF-Token"))
	assert.Equal(t, "serbisyo-app/1.0", sanitized.Get("User-Agent"))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44) // 32 bytes, base64
}
