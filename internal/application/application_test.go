package application

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/oxido/internal/config"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.CacheSize = 3
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if got := app.programs.Stats().Capacity; got != 3 {
		t.Fatalf("expected cache capacity 3, got %d", got)
	}
	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServesPlayground(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	handler := app.Server().Handler

	tests := []struct {
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{http.MethodGet, "/", "", http.StatusOK, "<textarea"},
		{http.MethodGet, "/static/playground.js", "", http.StatusOK, "/api/run"},
		{http.MethodGet, "/missing", "", http.StatusNotFound, ""},
		{http.MethodPost, "/api/run", `{"code":"println(6 * 7);"}`, http.StatusOK, `"output":"42\n\n"`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.want != "" && !bytes.Contains(rec.Body.Bytes(), []byte(tt.want)) {
				t.Fatalf("body does not contain %q: %s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestNewAppliesPlaygroundLimits(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.MaxSteps = 0
	cfg.PlaygroundMaxSteps = 50
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"code":"loop { }"}`))
	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, req)

	var body struct {
		Diagnostics []struct {
			Code string `json:"code"`
		} `json:"diagnostics"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity || len(body.Diagnostics) != 1 || body.Diagnostics[0].Code != "E0008" {
		t.Fatalf("expected step limit diagnostic, got %d %+v", rec.Code, body)
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestResolveProjectPathFindsGoMod(t *testing.T) {
	path, err := resolveProjectPath("go.mod")
	if err != nil {
		t.Fatalf("resolveProjectPath returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected go.mod to exist at %s: %v", path, err)
	}
}

func TestNewReturnsErrorForInvalidCacheSize(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.CacheSize = 0

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid cache size")
	}
}

func TestResolveProjectPathUnknownTarget(t *testing.T) {
	if _, err := resolveProjectPath("definitely-not-a-real-file"); err == nil {
		t.Fatalf("expected error for missing resource")
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                   port,
		MaxCallDepth:           10_000,
		PlaygroundMaxSteps:     10_000,
		PlaygroundMaxCallDepth: 64,
		RunTimeout:             time.Second,
		MaxSourceBytes:         4096,
		CacheSize:              8,
		ShutdownGracePeriod:    50 * time.Millisecond,
		ReadHeaderTimeout:      20 * time.Millisecond,
		WriteTimeout:           2 * time.Second,
		IdleTimeout:            40 * time.Millisecond,
		EnableRequestLogging:   false,
		RateLimitRPS:           0,
		RateLimitBurst:         0,
	}
}
