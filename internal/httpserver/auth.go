package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/logging"
	"github.com/Skotchmaster/blog_guard/internal/models"
	"github.com/Skotchmaster/blog_guard/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func invalidBody(err error) error {
	return apperr.Validation("invalid body", err)
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req models.RegisterInput
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return invalidBody(err)
	}

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return err
	}

	c.SetCookie(CreateCookie(accessCookie, res.Token, "/", res.ExpiresAt))
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req models.LoginInput
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return invalidBody(err)
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		return err
	}

	c.SetCookie(CreateCookie(accessCookie, res.Token, "/", res.ExpiresAt))
	l.Info("login_successful", "account_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

// LogOut only clears the cookie. Tokens are stateless and stay valid until
// they expire.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	c.SetCookie(DeleteCookie(accessCookie, "/"))
	logging.FromContext(c.Request().Context()).Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	raw, _ := c.Get(ctxRawToken).(string)
	acc, err := h.Svc.CurrentUser(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Profile())
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	claims, ok := ClaimsFrom(c)
	if !ok {
		return apperr.ErrUnauthorized
	}

	var req models.ChangePasswordInput
	if err := c.Bind(&req); err != nil {
		logging.FromContext(ctx).Warn("change_password_error", "status", 400, "error", err)
		return invalidBody(err)
	}

	if err := h.Svc.ChangePassword(ctx, claims.Subject, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) GetAccount(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperr.Validation("id must be a positive integer", nil)
	}

	acc, err := h.Svc.GetAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc)
}

type permissionsResponse struct {
	Role        models.Role     `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

// Permissions reports which role gates the caller passes.
func (h *AuthHTTP) Permissions(c echo.Context) error {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return apperr.ErrUnauthorized
	}

	res := permissionsResponse{Role: claims.Role, Permissions: map[string]bool{}}
	for _, r := range models.Roles() {
		res.Permissions[r.String()] = h.Svc.CheckPermission(claims.Role, r)
	}
	return c.JSON(http.StatusOK, res)
}
