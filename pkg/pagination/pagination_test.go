package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"limit=5&offset=10", 5, 10},
		{"limit=1000", MaxLimit, 0},
		{"limit=-3&offset=-1", DefaultLimit, 0},
		{"limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.query)
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%q: got %+v, want limit=%d offset=%d", tt.query, p, tt.limit, tt.offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, Params{Limit: 2, Offset: 0})
	if !r.HasMore {
		t.Error("expected more results")
	}
	r = NewResponse([]int{5}, 5, Params{Limit: 2, Offset: 4})
	if r.HasMore {
		t.Error("expected last page")
	}
	if r.Total != 5 || r.Limit != 2 || r.Offset != 4 {
		t.Errorf("unexpected envelope %+v", r)
	}
}
