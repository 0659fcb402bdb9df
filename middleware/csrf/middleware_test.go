package csrf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/config"
)

func enabledConfig() *config.CSRFConfig {
	return &config.CSRFConfig{
		Enabled:        true,
		TokenLength:    32,
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieMaxAge:   86400,
		CookieSameSite: "strict",
	}
}

func newEcho(cfg *config.CSRFConfig) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(cfg))
	e.GET("/auth/csrf", TokenHandler)
	e.POST("/verification/generate", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestMiddleware(t *testing.T) {
	t.Run("CSRF disabled", func(t *testing.T) {
		e := newEcho(&config.CSRFConfig{Enabled: false})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verification/generate", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("POST without token is rejected", func(t *testing.T) {
		e := newEcho(enabledConfig())

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verification/generate", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("token round trip", func(t *testing.T) {
		e := newEcho(enabledConfig())

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		token := body["csrf_token"]
		require.Len(t, token, 32)

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, "_csrf", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

		req := httptest.NewRequest(http.MethodPost, "/verification/generate", strings.NewReader("type=email&csrf_token="+token))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.AddCookie(cookies[0])
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("mismatched token is forbidden", func(t *testing.T) {
		e := newEcho(enabledConfig())

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		req := httptest.NewRequest(http.MethodPost, "/verification/generate", nil)
		req.Header.Set("X-CSRF-Token", "forged")
		req.AddCookie(cookies[0])
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetToken(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Empty(t, GetToken(c))

	c.Set("csrf", "abc")
	assert.Equal(t, "abc", GetToken(c))
}
