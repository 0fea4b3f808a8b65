package clinical

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
)

func newTestEcho(t *testing.T, role string) (*echo.Echo, *fixture) {
	t.Helper()
	fx := newFixture(t)
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "2", "dr.haddad", []string{role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(fx.svc).RegisterRoutes(api)
	return e, fx
}

func send(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndGetMedicalRecord(t *testing.T) {
	e, fx := newTestEcho(t, records.RoleDoctor)

	body := fmt.Sprintf(`{"patientId":%d,"doctorId":%d,"visitDate":"2026-05-01","diagnosis":"Hypertension",
		"prescriptions":[{"medicationName":"Amlodipine","dosage":"5mg"}]}`, fx.patient.ID, fx.doctor.ID)
	rec := send(e, http.MethodPost, "/api/v1/medical-records", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = send(e, http.MethodGet, "/api/v1/medical-records/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		ID            int64  `json:"id"`
		Diagnosis     string `json:"diagnosis"`
		CreatedBy     string `json:"createdBy"`
		Prescriptions []struct {
			MedicalRecordID int64  `json:"medicalRecordId"`
			MedicationName  string `json:"medicationName"`
		} `json:"prescriptions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 1 || got.Diagnosis != "Hypertension" || len(got.Prescriptions) != 1 || got.Prescriptions[0].MedicalRecordID != 1 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ListMedicalRecords_BadQuery(t *testing.T) {
	e, _ := newTestEcho(t, records.RoleAdmin)
	rec := send(e, http.MethodGet, "/api/v1/medical-records?patientId=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	rec = send(e, http.MethodGet, "/api/v1/medical-records?sort=password", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown sort column, got %d", rec.Code)
	}
}

func TestHandler_MedicalRecords_RoleGate(t *testing.T) {
	for _, role := range []string{records.RoleReceptionist, records.RolePatient} {
		e, _ := newTestEcho(t, role)
		rec := send(e, http.MethodGet, "/api/v1/medical-records", "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", role, rec.Code)
		}
	}
}
