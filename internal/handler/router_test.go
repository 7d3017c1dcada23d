package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/userhub/internal/metrics"
	"github.com/hitoshi/userhub/internal/model"
)

// mockPinger はHealthPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newTestRouter(svc UserServiceInterface, pinger HealthPinger) http.Handler {
	return NewRouter(&RouterDeps{
		UserService:       svc,
		CORSAllowedOrigin: "*",
		HealthPinger:      pinger,
	})
}

func TestNewRouter_RootEndpoint(t *testing.T) {
	router := newTestRouter(&mockUserService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "Welcome to User Management API" {
		t.Errorf("message = %q, want welcome message", body["message"])
	}
}

func TestNewRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(&mockUserService{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_HealthEndpoint_DBUnreachable(t *testing.T) {
	router := newTestRouter(&mockUserService{}, &mockPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	router := NewRouter(&RouterDeps{
		UserService:       &mockUserService{},
		CORSAllowedOrigin: "*",
		Metrics:           collector,
		MetricsGatherer:   reg,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
}

// 全ユーザー管理エンドポイントがルーティングされていることを検証する。
// ハンドラー個別の挙動はuser_handler_test.goで検証済み。
func TestNewRouter_UserRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"create", http.MethodPost, "/users", http.StatusBadRequest}, // 空ボディ
		{"list", http.MethodGet, "/users", http.StatusOK},
		{"get", http.MethodGet, "/users/1", http.StatusOK},
		{"replace", http.MethodPut, "/users/1", http.StatusBadRequest}, // 空ボディ
		{"patch", http.MethodPatch, "/users/1", http.StatusBadRequest}, // 空ボディ
		{"delete", http.MethodDelete, "/users/1", http.StatusNoContent},
		{"search", http.MethodGet, "/users/search/john", http.StatusOK},
	}

	svc := &mockUserService{
		getFn: func(ctx context.Context, id int64) (*model.User, error) {
			return sampleUser(), nil
		},
	}
	router := newTestRouter(svc, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
			}
		})
	}
}

// 検索ルートが/users/{id}ルートと衝突しないことを検証する
func TestNewRouter_SearchDoesNotShadowGetByID(t *testing.T) {
	var gotID int64
	var gotTerm string

	svc := &mockUserService{
		getFn: func(ctx context.Context, id int64) (*model.User, error) {
			gotID = id
			return sampleUser(), nil
		},
		searchFn: func(ctx context.Context, term string) ([]model.User, error) {
			gotTerm = term
			return nil, nil
		},
	}
	router := newTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	if gotID != 42 {
		t.Errorf("GET /users/42 resolved id = %d, want 42", gotID)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/search/alice", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	if gotTerm != "alice" {
		t.Errorf("GET /users/search/alice resolved term = %q, want alice", gotTerm)
	}
}

func TestNewRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(&mockUserService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(&mockUserService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /users status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
