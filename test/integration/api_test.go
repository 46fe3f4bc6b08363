package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/oxido/internal/api"
	"github.com/eugenenazirov/oxido/internal/storage"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	store, err := storage.NewProgramStore(16)
	if err != nil {
		t.Fatalf("create program store: %v", err)
	}
	logger := zaptest.NewLogger(t)
	handler := api.NewHandler(api.WithProgramStore(store), api.WithHandlerLogger(logger))
	return api.NewRouter(handler, logger, api.WithRateLimit(0, 0))
}

func performRequest(t *testing.T, handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type runResult struct {
	Output      string `json:"output"`
	ExitCode    int    `json:"exitCode"`
	Executed    bool   `json:"executed"`
	Cached      bool   `json:"cached"`
	Diagnostics []struct {
		Code   string `json:"code"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
	} `json:"diagnostics"`
}

func run(t *testing.T, handler http.Handler, payload map[string]any) (int, runResult) {
	t.Helper()

	body, _ := json.Marshal(payload)
	rec := performRequest(t, handler, http.MethodPost, "/api/run", body)

	var result runResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	return rec.Code, result
}

func TestIntegrationFlow(t *testing.T) {
	handler := newRouter(t)

	rec := performRequest(t, handler, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}

	program := `
fn greet(name: str) -> str {
    return "hello, " + name;
}

let names: vec<str> = [];
loop {
    let line = read();
    if line == "" {
        break;
    }
    names[len(names)] = line;
}

let i = 0;
loop {
    if i >= len(names) {
        break;
    }
    println(greet(names[i]));
    i = i + 1;
}
exit len(names);
`
	status, first := run(t, handler, map[string]any{"code": program, "stdin": "ada\ngrace\n"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from run, got %d", status)
	}
	if first.Output != "hello, ada\nhello, grace\n" || first.ExitCode != 2 || first.Cached {
		t.Fatalf("unexpected first run %+v", first)
	}

	status, second := run(t, handler, map[string]any{"code": program, "stdin": "linus\n"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from second run, got %d", status)
	}
	if second.Output != "hello, linus\n" || second.ExitCode != 1 || !second.Cached {
		t.Fatalf("unexpected second run %+v", second)
	}

	status, failed := run(t, handler, map[string]any{"code": "let x: int = \"five\";"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 from mistyped program, got %d", status)
	}
	if len(failed.Diagnostics) != 1 || failed.Diagnostics[0].Line != 1 {
		t.Fatalf("unexpected diagnostics %+v", failed.Diagnostics)
	}

	rec = performRequest(t, handler, http.MethodGet, "/api/health", nil)
	var health struct {
		Cache storage.Stats `json:"cache"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Cache.Hits != 1 || health.Cache.Entries != 2 {
		t.Fatalf("unexpected cache stats %+v", health.Cache)
	}
}
