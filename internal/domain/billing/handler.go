package billing

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
	// Billing endpoints – admin, receptionist
	g := api.Group("/billings", auth.RequireRole(records.RoleAdmin, records.RoleReceptionist))
	g.GET("", h.ListBillings)
	g.GET("/:id", h.GetBilling)
	g.POST("", h.CreateBilling)
	g.PUT("/:id", h.UpdateBilling)
	g.POST("/:id/payments", h.ProcessPayment)
	g.DELETE("/:id", h.DeleteBilling)
}

func (h *Handler) CreateBilling(c echo.Context) error {
	var in BillingInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	b, err := h.svc.CreateBilling(c.Request().Context(), in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBilling(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBilling(c.Request().Context(), id)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBillings(c echo.Context) error {
	patientID, err := apierr.QueryID(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBillings(c.Request().Context(), Filter{PatientID: patientID, Status: c.QueryParam("status")}, pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateBilling(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var upd BillingUpdate
	if err := c.Bind(&upd); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	b, err := h.svc.UpdateBilling(c.Request().Context(), id, upd)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ProcessPayment(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	b, err := h.svc.ProcessPayment(c.Request().Context(), id, in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBilling(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBilling(c.Request().Context(), id); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
