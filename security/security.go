package security

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/serbisyo/serbisyo_backend/models"
)

// Content types accepted on body-bearing requests. Everything the API
// consumes is JSON; form encodings cover the gateway redirect callbacks.
var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// ValidateContentType rejects POST/PUT/PATCH requests whose body claims a
// content type the API never parses.
func ValidateContentType() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return next(c)
			}
			if req.ContentLength == 0 {
				return next(c)
			}

			contentType := req.Header.Get(echo.HeaderContentType)
			for _, allowed := range allowedContentTypes {
				if strings.HasPrefix(contentType, allowed) {
					return next(c)
				}
			}

			log.Printf("Rejected %s %s with content type %q, headers: %v",
				req.Method, req.URL.Path, contentType, SanitizeHeaders(req.Header.Clone()))
			return c.JSON(http.StatusUnsupportedMediaType, models.Response{
				Status:  http.StatusUnsupportedMediaType,
				Message: "Unsupported content type",
			})
		}
	}
}

// SanitizeHeaders strips credential-bearing headers so the rest can be
// logged.
func SanitizeHeaders(headers http.Header) http.Header {
	for _, header := range []string{
		"Authorization",
		"Cookie",
		"Set-Cookie",
		"X-CSRF-Token",
	} {
		headers.Del(header)
	}
	return headers
}

// GenerateToken returns n random bytes, URL-safe encoded. Used for
// remember-me tokens.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
