package clinical

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
	// Medical record endpoints – admin, doctor
	g := api.Group("/medical-records", auth.RequireRole(records.RoleAdmin, records.RoleDoctor))
	g.GET("", h.ListMedicalRecords)
	g.GET("/:id", h.GetMedicalRecord)
	g.POST("", h.CreateMedicalRecord)
	g.PUT("/:id", h.UpdateMedicalRecord)
	g.DELETE("/:id", h.DeleteMedicalRecord)
}

func (h *Handler) CreateMedicalRecord(c echo.Context) error {
	var in MedicalRecordInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	detail, err := h.svc.CreateMedicalRecord(c.Request().Context(), in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusCreated, detail)
}

func (h *Handler) GetMedicalRecord(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.svc.GetMedicalRecord(c.Request().Context(), id)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListMedicalRecords(c echo.Context) error {
	patientID, err := apierr.QueryID(c, "patientId")
	if err != nil {
		return err
	}
	doctorID, err := apierr.QueryID(c, "doctorId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{PatientID: patientID, DoctorID: doctorID, Query: c.QueryParam("q")}
	items, total, err := h.svc.ListMedicalRecords(c.Request().Context(), f, pg)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedicalRecord(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in MedicalRecordInput
	if err := c.Bind(&in); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	mr, err := h.svc.UpdateMedicalRecord(c.Request().Context(), id, in)
	if err != nil {
		return apierr.FromContext(c, err)
	}
	return c.JSON(http.StatusOK, mr)
}

func (h *Handler) DeleteMedicalRecord(c echo.Context) error {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedicalRecord(c.Request().Context(), id); err != nil {
		return apierr.FromContext(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
