package pagination

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
	if p.Sort != nil {
		t.Errorf("expected no sort, got %v", p.Sort)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "/?limit=50&offset=10")
	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	if p := paramsFor(t, "/?limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	p := paramsFor(t, "/?limit=abc&offset=-5")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit, got %d", p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", p.Offset)
	}
}

func TestFromContext_Sort(t *testing.T) {
	p := paramsFor(t, "/?sort=last_name,-created_at,,-")
	want := []string{"last_name", "created_at desc"}
	if !reflect.DeepEqual(p.Sort, want) {
		t.Errorf("expected %v, got %v", want, p.Sort)
	}
	if got := p.OrderOr("id"); !reflect.DeepEqual(got, want) {
		t.Errorf("expected requested sort to win, got %v", got)
	}
	if got := (Params{}).OrderOr("id"); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("expected fallback, got %v", got)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if resp.Total != 10 {
		t.Errorf("expected total 10, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more to be true")
	}

	resp = NewResponse([]string{"a"}, 3, 2, 2)
	if resp.HasMore {
		t.Error("expected has_more to be false on the last page")
	}
}

func TestParams_Next(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if !p.HasNext(61) {
		t.Error("expected a next page")
	}
	if p.HasNext(60) {
		t.Error("expected no next page")
	}
	if p.NextOffset() != 60 {
		t.Errorf("expected next offset 60, got %d", p.NextOffset())
	}
}
