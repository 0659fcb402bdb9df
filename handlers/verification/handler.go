// Package verification serves the verification endpoints for the logged-in
// user.
package verification

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/verification"
	"github.com/synergypro/verifyd/session"
	"go.uber.org/zap"
)

type Verifier interface {
	Generate(ctx context.Context, userID uint, channel string) (*verification.Result, error)
	Resend(ctx context.Context, userID uint, channel string) (*verification.Result, error)
	Verify(ctx context.Context, userID uint, channel, code string) (*verification.Result, error)
	Status(ctx context.Context, userID uint) (*verification.StatusResult, error)
	ChangeContact(ctx context.Context, userID uint, channel, value string) error
}

type Handler struct {
	verifier Verifier
	logger   *logging.Service
}

func NewHandler(verifier *verification.Service, logger *logging.Service) *Handler {
	return newHandler(verifier, logger)
}

func newHandler(verifier Verifier, logger *logging.Service) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

type channelRequest struct {
	Type string `form:"type" json:"type"`
}

type verifyRequest struct {
	Type string `form:"type" json:"type"`
	OTP  string `form:"otp" json:"otp"`
}

type contactRequest struct {
	Type  string `form:"type" json:"type"`
	Value string `form:"value" json:"value"`
}

type errorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// RegisterRoutes mounts the endpoints on g. Every route requires a
// logged-in session; extra middleware (rate limiting) runs after that check.
func (h *Handler) RegisterRoutes(g *echo.Group, middleware ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{session.RequireAuth()}, middleware...)

	g.POST("/generate", h.Generate, mw...)
	g.POST("/resend", h.Resend, mw...)
	g.POST("/verify", h.Verify, mw...)
	g.GET("/status", h.Status, mw...)
	g.POST("/contact", h.ChangeContact, mw...)
}

func (h *Handler) Generate(c echo.Context) error {
	var req channelRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "Invalid request")
	}

	res, err := h.verifier.Generate(c.Request().Context(), session.GetUserIDAsUint(c), req.Type)
	if err != nil {
		return h.fail(c, "generate", err)
	}
	return c.JSON(http.StatusOK, successResponse{Status: "success", Message: res.Message})
}

func (h *Handler) Resend(c echo.Context) error {
	var req channelRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "Invalid request")
	}

	res, err := h.verifier.Resend(c.Request().Context(), session.GetUserIDAsUint(c), req.Type)
	if err != nil {
		return h.fail(c, "resend", err)
	}
	return c.JSON(http.StatusOK, successResponse{Status: "success", Message: res.Message})
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "Invalid request")
	}

	res, err := h.verifier.Verify(c.Request().Context(), session.GetUserIDAsUint(c), req.Type, req.OTP)
	if err != nil {
		return h.fail(c, "verify", err)
	}
	return c.JSON(http.StatusOK, successResponse{
		Status:  "success",
		Message: res.Message,
		Type:    res.Channel.String(),
	})
}

func (h *Handler) Status(c echo.Context) error {
	res, err := h.verifier.Status(c.Request().Context(), session.GetUserIDAsUint(c))
	if err != nil {
		return h.fail(c, "status", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ChangeContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "Invalid request")
	}

	if err := h.verifier.ChangeContact(c.Request().Context(), session.GetUserIDAsUint(c), req.Type, req.Value); err != nil {
		return h.fail(c, "contact", err)
	}
	return c.JSON(http.StatusOK, successResponse{Status: "success", Message: "Contact details updated"})
}

func (h *Handler) badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Message: message})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Uint("user_id", session.GetUserIDAsUint(c)),
		zap.String("device", session.DeviceLabel(c.Request().UserAgent())),
		zap.Error(err),
	}

	message, ok := verification.UserMessage(err)
	if !ok {
		h.logger.Error("verification request failed", fields...)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Status:  "error",
			Message: "An unexpected error occurred. Please try again later.",
		})
	}

	h.logger.Info("verification request rejected", fields...)

	resp := errorResponse{Status: "error", Message: message}
	var throttled *verification.ThrottleError
	if errors.As(err, &throttled) {
		seconds := int(math.Ceil(throttled.RetryAfter.Seconds()))
		resp.RetryAfter = &seconds
	}
	return c.JSON(http.StatusBadRequest, resp)
}
