package auditevent

import (
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
	read := api.Group("/audit-logs", auth.RequireRole(records.RoleAdmin))
	read.GET("", h.ListAuditLogs)
	read.GET("/:entity/:id", h.EntityHistory)
}

func (h *Handler) ListAuditLogs(c echo.Context) error {
	entityID, err := apierr.QueryID(c, "entityId")
	if err != nil {
		return err
	}
	q := Query{
		EntityName: c.QueryParam("entityName"),
		EntityID:   entityID,
		Action:     c.QueryParam("action"),
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAuditLogs(c.Request().Context(), q, pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) EntityHistory(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.EntityHistory(c.Request().Context(), c.Param("entity"), id, pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
