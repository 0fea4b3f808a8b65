package admin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/apierr"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public and self-service account endpoints
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.GET("/auth/me", h.Me)
	api.POST("/auth/change-password", h.ChangePassword)

	// Read endpoints – any signed-in user
	api.GET("/departments", h.ListDepartments)
	api.GET("/departments/:id", h.GetDepartment)

	// Write endpoints – admin only
	writeGroup := api.Group("", auth.RequireRole(records.RoleAdmin))
	writeGroup.POST("/departments", h.CreateDepartment)
	writeGroup.PUT("/departments/:id", h.UpdateDepartment)
	writeGroup.DELETE("/departments/:id", h.DeleteDepartment)
	writeGroup.DELETE("/departments/:id/hard", h.PurgeDepartment)
	writeGroup.GET("/users", h.ListUsers)
	writeGroup.POST("/users", h.CreateUser)
	writeGroup.PUT("/users/:id", h.UpdateUser)
	writeGroup.DELETE("/users/:id", h.DeleteUser)
}

// -- Account Handlers --

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	sess, err := h.svc.Login(c.Request().Context(), in)
	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	sess, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	username := auth.UsernameFromContext(ctx)
	if username == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	u, err := h.svc.Me(ctx, username)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	username := auth.UsernameFromContext(ctx)
	if username == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	var in ChangePasswordInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	if err := h.svc.ChangePassword(ctx, username, in); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Department Handlers --

func (h *Handler) CreateDepartment(c echo.Context) error {
	var in DepartmentInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	d, err := h.svc.CreateDepartment(c.Request().Context(), in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDepartments(c.Request().Context(), c.QueryParam("q"), pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in DepartmentInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	d, err := h.svc.UpdateDepartment(c.Request().Context(), id, in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDepartment(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDepartment(c.Request().Context(), id); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PurgeDepartment(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.PurgeDepartment(c.Request().Context(), id); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- User Handlers --

type createUserRequest struct {
	RegisterInput
	Role string `json:"role"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), req.RegisterInput, req.Role)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("q"), pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var upd UserUpdate
	if err := c.Bind(&upd); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, upd)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
