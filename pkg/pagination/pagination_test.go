package pagination

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target string
		want   Params
	}{
		{"/", Params{Limit: DefaultLimit}},
		{"/?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"/?limit=0", Params{Limit: DefaultLimit}},
		{"/?limit=500", Params{Limit: MaxLimit}},
	}
	for _, tt := range tests {
		got, err := FromContext(contextFor(tt.target))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.target, got, tt.want)
		}
	}
}

func TestFromContext_Rejects(t *testing.T) {
	for target, param := range map[string]string{
		"/?limit=abc":  "limit",
		"/?limit=-1":   "limit",
		"/?offset=-5":  "offset",
		"/?offset=1.5": "offset",
	} {
		_, err := FromContext(contextFor(target))
		var pe *ParamError
		if !errors.As(err, &pe) || pe.Param != param {
			t.Errorf("%s: expected ParamError on %s, got %v", target, param, err)
		}
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 2})
	if !p.HasMore || p.Total != 5 || p.Limit != 2 || p.Offset != 2 {
		t.Errorf("unexpected page %+v", p)
	}

	last := NewPage([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("did not expect more after the last page")
	}

	empty := NewPage[string](nil, 0, Params{Limit: 20})
	if empty.Data == nil || empty.HasMore {
		t.Errorf("expected empty non-nil data, got %+v", empty)
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name string
		p    Params
		want []int
	}{
		{"first page", Params{Limit: 2, Offset: 0}, []int{1, 2}},
		{"last partial page", Params{Limit: 2, Offset: 4}, []int{5}},
		{"past the end", Params{Limit: 2, Offset: 10}, []int{}},
		{"no limit", Params{Offset: 3}, []int{4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(items, tt.p)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
