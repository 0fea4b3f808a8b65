package medication

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
)

func newTestEcho(t *testing.T, role string) (*echo.Echo, *records.MedicalRecord) {
	t.Helper()
	svc, mr := newTestService(t)
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "2", "dr.haddad", []string{role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)
	return e, mr
}

func send(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_PrescriptionLifecycle(t *testing.T) {
	e, mr := newTestEcho(t, records.RoleDoctor)

	rec := send(e, http.MethodPost, "/api/v1/prescriptions", fmt.Sprintf(`{"medicalRecordId":%d,"medicationName":"Aspirin","dosage":"75mg"}`, mr.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = send(e, http.MethodGet, fmt.Sprintf("/api/v1/prescriptions?medicalRecordId=%d", mr.ID), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one prescription, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = send(e, http.MethodGet, "/api/v1/prescriptions?medicalRecordId=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad medicalRecordId, got %d", rec.Code)
	}

	rec = send(e, http.MethodDelete, "/api/v1/prescriptions/1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = send(e, http.MethodGet, "/api/v1/prescriptions/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandler_Prescriptions_ReceptionistForbidden(t *testing.T) {
	e, _ := newTestEcho(t, records.RoleReceptionist)
	rec := send(e, http.MethodGet, "/api/v1/prescriptions", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
