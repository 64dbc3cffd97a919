package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/metadata"
	"github.com/Fantasim/tokenmeta/internal/metrics"
	"github.com/Fantasim/tokenmeta/internal/network"
)

func setupRouter(t *testing.T, withMetrics bool) http.Handler {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	registry, err := network.NewRegistry("", nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	deps := Deps{
		DB:       database,
		Config:   &config.Config{DBPath: "test.sqlite"},
		Registry: registry,
		Fetcher:  metadata.NewFetcher(registry),
	}

	if withMetrics {
		reg := metrics.NewRegistry()
		if _, err := metrics.New(reg); err != nil {
			t.Fatalf("metrics.New() error = %v", err)
		}
		deps.Metrics = metrics.Handler(reg)
	}

	return NewRouter(deps)
}

func TestRouter_Routes(t *testing.T) {
	router := setupRouter(t, false)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/networks", http.StatusOK},
		{"GET", "/api/networks/homestead/metadata", http.StatusOK},
		{"GET", "/api/networks/homestead/runs", http.StatusOK},
		{"GET", "/api/networks/homestead/tokenlist", http.StatusOK},
		{"GET", "/api/networks/goerli/metadata", http.StatusBadRequest},
		{"GET", "/api/unknown", http.StatusNotFound},
		{"DELETE", "/api/networks/homestead/metadata", http.StatusMethodNotAllowed},
		{"GET", "/metrics", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRouter_FetchWithoutEndpoint(t *testing.T) {
	router := setupRouter(t, false)

	body := strings.NewReader(`{"tokens":["0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"]}`)
	req := httptest.NewRequest("POST", "/api/networks/homestead/metadata", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 without an infura key", w.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := setupRouter(t, true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	router := setupRouter(t, false)

	req := httptest.NewRequest("GET", "/api/networks", nil)
	req.Header.Set("Origin", "https://wallet.example.org")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
