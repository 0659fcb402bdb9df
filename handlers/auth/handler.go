// Package auth provides session login and logout for verification callers.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/users"
	"github.com/synergypro/verifyd/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(NewHandler),
)

type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (*users.User, error)
}

type Handler struct {
	users  Authenticator
	logger *logging.Service
}

func NewHandler(userService *users.Service, logger *logging.Service) *Handler {
	return &Handler{users: userService, logger: logger}
}

type loginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

func (h *Handler) RegisterRoutes(g *echo.Group, middleware ...echo.MiddlewareFunc) {
	g.POST("/login", h.Login, middleware...)
	g.POST("/logout", h.Logout)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Identifier == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "Missing required parameters",
		})
	}

	user, err := h.users.Authenticate(c.Request().Context(), req.Identifier, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"status":  "error",
			"message": "Invalid credentials",
		})
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "An unexpected error occurred. Please try again later.",
		})
	}

	if err := session.Login(c, user.ID); err != nil {
		return err
	}

	h.logger.Info("user logged in",
		zap.Uint("user_id", user.ID),
		zap.String("device", session.DeviceLabel(c.Request().UserAgent())),
	)

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Logged in",
		"user":    user,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := session.Logout(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Logged out",
	})
}
