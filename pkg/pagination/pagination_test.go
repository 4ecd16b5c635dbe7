package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Clamping(t *testing.T) {
	tests := []struct {
		target string
		limit  int
		offset int
	}{
		{"/?limit=10&offset=30", 10, 30},
		{"/?limit=9999", MaxLimit, 0},
		{"/?limit=-5&offset=-2", DefaultLimit, 0},
		{"/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			p := paramsFor(tt.target)
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("expected limit=%d offset=%d, got %+v", tt.limit, tt.offset, p)
			}
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	resp := Page(items, Params{Limit: 2, Offset: 2})
	got := resp.Data.([]int)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("unexpected window: %v", got)
	}
	if resp.Total != 5 || !resp.HasMore {
		t.Errorf("unexpected metadata: %+v", resp)
	}

	last := Page(items, Params{Limit: 2, Offset: 4})
	if len(last.Data.([]int)) != 1 || last.HasMore {
		t.Errorf("unexpected last page: %+v", last)
	}
}

func TestPage_OffsetPastEnd(t *testing.T) {
	resp := Page([]string{"a"}, Params{Limit: 10, Offset: 50})
	if got := resp.Data.([]string); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil window, got %v", got)
	}
	if resp.HasMore {
		t.Error("expected HasMore to be false")
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) {
		t.Error("expected next page for 11 results")
	}
	if p.HasNext(10) {
		t.Error("expected no next page for exactly 10 results")
	}
}
