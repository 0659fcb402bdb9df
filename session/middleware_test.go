package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(testSessionConfig("memory"), nil, nil, nil)
	require.NoError(t, err)
	return manager
}

func TestMiddleware(t *testing.T) {
	t.Run("nil manager passes through", func(t *testing.T) {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

		called := false
		err := Middleware(nil)(func(c echo.Context) error {
			called = true
			return nil
		})(c)

		assert.NoError(t, err)
		assert.True(t, called)
		assert.Nil(t, GetManager(c))
	})

	t.Run("session survives across requests via cookie", func(t *testing.T) {
		manager := newTestManager(t)

		e := echo.New()
		e.Use(Middleware(manager))
		e.POST("/set", func(c echo.Context) error {
			assert.Same(t, manager, GetManager(c))
			assert.Same(t, manager, GetManagerFromContext(c.Request().Context()))
			manager.Put(c.Request().Context(), "greeting", "hello")
			return c.NoContent(http.StatusNoContent)
		})
		e.GET("/get", func(c echo.Context) error {
			value, _ := manager.Get(c.Request().Context(), "greeting").(string)
			return c.String(http.StatusOK, value)
		})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/set", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		req := httptest.NewRequest(http.MethodGet, "/get", nil)
		req.AddCookie(cookies[0])
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello", rec.Body.String())
	})

	t.Run("handler error is returned", func(t *testing.T) {
		manager := newTestManager(t)

		e := echo.New()
		e.Use(Middleware(manager))
		e.GET("/fail", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusTeapot, "nope")
		})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}
