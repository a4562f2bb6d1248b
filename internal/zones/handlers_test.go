package zones

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vigilia/guard-backend/internal/utils"
)

// staticFetcher authenticates every token as the same subject.
type staticFetcher struct {
	role string
}

func (f staticFetcher) FindSubjectByToken(token string) (utils.SubjectData, error) {
	return utils.SubjectData{UserID: "user-1", Role: f.role, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// These requests are all rejected before any database access.
func TestHandlers_RejectInvalidInput(t *testing.T) {
	h := routes(staticFetcher{role: "admin"})

	cases := []struct {
		name, method, path, body string
		want                     int
		contains                 string
	}{
		{"create: bad json", http.MethodPost, "/", "{", http.StatusBadRequest, "Invalid JSON"},
		{"create: missing fields", http.MethodPost, "/", `{"nombre":"A"}`, http.StatusBadRequest, "required"},
		{"create: two vertices", http.MethodPost, "/", `{"nombre":"A","tipo":"poligono","coordenadas":"[{\"lat\":0,\"lng\":0},{\"lat\":1,\"lng\":1}]"}`, http.StatusBadRequest, "at least 3"},
		{"create: zero radius", http.MethodPost, "/", `{"nombre":"A","tipo":"circulo","coordenadas":{"lat":0,"lng":0,"radio":0}}`, http.StatusBadRequest, "radius"},
		{"create: vertex out of range", http.MethodPost, "/", `{"nombre":"A","tipo":"poligono","coordenadas":[{"lat":0,"lng":0},{"lat":100,"lng":1},{"lat":1,"lng":0}]}`, http.StatusBadRequest, "invalid coordinates"},
		{"create: unknown tipo", http.MethodPost, "/", `{"nombre":"A","tipo":"hexagono","coordenadas":"[]"}`, http.StatusBadRequest, "malformed"},
		{"update: bad id", http.MethodPut, "/not-a-uuid", `{}`, http.StatusBadRequest, "Invalid id"},
		{"delete: bad id", http.MethodDelete, "/not-a-uuid", "", http.StatusBadRequest, "Invalid id"},
		{"assignment: missing start", http.MethodPost, "/asignaciones", `{"guardia_id":"g1","zona_id":"7b0c6a52-8c1a-4d6f-9d51-3b7c1d2f9e10"}`, http.StatusBadRequest, "fecha_inicio"},
		{"assignment: end before start", http.MethodPost, "/asignaciones", `{"guardia_id":"g1","zona_id":"7b0c6a52-8c1a-4d6f-9d51-3b7c1d2f9e10","fecha_inicio":"2024-03-10","fecha_fin":"2024-03-01"}`, http.StatusBadRequest, "fecha_fin"},
		{"assignment: bad date", http.MethodPost, "/asignaciones", `{"guardia_id":"g1","fecha_inicio":"10/03/2024"}`, http.StatusBadRequest, "Invalid JSON"},
		{"alerts: bad resuelta", http.MethodGet, "/alertas?resuelta=maybe", "", http.StatusBadRequest, "resuelta"},
		{"alerts: bad zona_id", http.MethodGet, "/alertas?zona_id=abc", "", http.StatusBadRequest, "zona_id"},
		{"resolve: bad id", http.MethodPost, "/alertas/xyz/resolver", "", http.StatusBadRequest, "Invalid id"},
		{"verify: missing lat", http.MethodPost, "/verificar", `{"zona_id":"7b0c6a52-8c1a-4d6f-9d51-3b7c1d2f9e10","lng":1}`, http.StatusBadRequest, "required"},
		{"verify: out of range", http.MethodPost, "/verificar", `{"zona_id":"7b0c6a52-8c1a-4d6f-9d51-3b7c1d2f9e10","lat":91,"lng":1}`, http.StatusBadRequest, "invalid coordinates"},
		{"verify: missing zone", http.MethodPost, "/verificar", `{"lat":1,"lng":1}`, http.StatusBadRequest, "zona_id"},
		{"list: bad activo", http.MethodGet, "/?activo=si", "", http.StatusBadRequest, "activo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.contains) {
				t.Errorf("expected body to contain %q, got %q", tc.contains, rec.Body.String())
			}
		})
	}
}

func TestHandlers_WritesRequireAdmin(t *testing.T) {
	h := routes(staticFetcher{role: "guardia"})

	for _, path := range []string{"/", "/asignaciones", "/alertas/7b0c6a52-8c1a-4d6f-9d51-3b7c1d2f9e10/resolver"} {
		rec := do(t, h, http.MethodPost, path, `{}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("POST %s: expected 403, got %d", path, rec.Code)
		}
	}
}

func TestHandlers_RequireSession(t *testing.T) {
	h := routes(staticFetcher{role: "admin"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
}
