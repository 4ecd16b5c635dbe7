package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noemisales1009/Round-Juju/internal/config"
	"github.com/noemisales1009/Round-Juju/internal/domain/checklist"
	"github.com/noemisales1009/Round-Juju/internal/domain/task"
	"github.com/noemisales1009/Round-Juju/internal/platform/auth"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
	"github.com/noemisales1009/Round-Juju/internal/platform/telemetry"
	"github.com/noemisales1009/Round-Juju/internal/platform/websocket"
)

const testKey = "0123456789abcdef0123456789abcdef"

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		DBSchema:        "public",
		DBRetryAttempts: 2,
		DBRetryDelay:    10 * time.Millisecond,
		DBQueryTimeout:  time.Second,
		Timezone:        "America/Sao_Paulo",
		CatalogFile:     "../../configs/catalog.yaml",
		CORSOrigins:     []string{"http://localhost:3000"},
	}
}

// testRouter wires the real router over the shipped catalog file. Repository
// calls are never reached by the routes exercised here.
func testRouter(t *testing.T, cfg *config.Config, ping db.Pinger) http.Handler {
	t.Helper()
	catalog, err := loadCatalog(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	clk := clock.NewFixed(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), time.UTC)
	svcs := newServices(nil, catalog, clk, retryPolicy(cfg))
	metrics := telemetry.NewProvider("rounds-server", version)
	return newRouter(cfg, zerolog.Nop(), ping, svcs, websocket.NewHub(zerolog.Nop()), metrics)
}

func get(h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRetryPolicy_FromConfig(t *testing.T) {
	p := retryPolicy(testConfig())
	if p.MaxAttempts != 2 || p.InitialDelay != 10*time.Millisecond || p.Timeout != time.Second {
		t.Errorf("unexpected policy: %+v", p)
	}
}

func TestRouter_HealthAndCatalogInDevelopment(t *testing.T) {
	h := testRouter(t, testConfig(), fakePinger{})

	rec := get(h, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), version) {
		t.Fatalf("unexpected /health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id on the response")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	rec = get(h, "/api/v1/catalog/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dev admin, got %d", rec.Code)
	}
	var cats []checklist.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cats) != 12 {
		t.Errorf("expected 12 categories, got %d", len(cats))
	}
}

func TestRouter_DatabaseHealth(t *testing.T) {
	if rec := get(testRouter(t, testConfig(), fakePinger{}), "/health/db", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	down := fakePinger{err: errors.New("connection refused")}
	if rec := get(testRouter(t, testConfig(), down), "/health/db", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_RequiresTokenWhenKeyConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = testKey
	h := testRouter(t, cfg, fakePinger{})

	if rec := get(h, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("expected public /health, got %d", rec.Code)
	}
	if rec := get(h, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("expected public /metrics, got %d", rec.Code)
	}
	if rec := get(h, "/api/v1/catalog/categories", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	tok, err := auth.IssueToken(auth.JWTConfig{SigningKey: []byte(testKey)},
		"nurse-1", "Ana", []string{auth.RoleViewer}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if rec := get(h, "/api/v1/catalog/categories/2/questions", tok); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with viewer token, got %d", rec.Code)
	}
}

func TestRouter_MetricsCountRoutes(t *testing.T) {
	h := testRouter(t, testConfig(), fakePinger{})
	get(h, "/api/v1/catalog/categories/2/questions", "")
	get(h, "/api/v1/catalog/categories/3/questions", "")

	body := get(h, "/metrics", "").Body.String()
	want := `http_requests_total{method="GET",route="/api/v1/catalog/categories/:id/questions",status="200"} 2`
	if !strings.Contains(body, want) {
		t.Errorf("missing %q in:\n%s", want, body)
	}
}

func TestCLIClock(t *testing.T) {
	clk, err := cliClock("2025-03-10T14:00:00Z", time.UTC)
	if err != nil {
		t.Fatalf("cliClock: %v", err)
	}
	if got := clk.Now(); !got.Equal(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected now %v", got)
	}
	if _, err := cliClock("yesterday", time.UTC); err == nil {
		t.Error("expected error for malformed --at")
	}
	if _, ok := mustClock(t, "").(*clock.System); !ok {
		t.Error("expected the system clock without --at")
	}
}

func mustClock(t *testing.T, raw string) clock.Clock {
	t.Helper()
	clk, err := cliClock(raw, time.UTC)
	if err != nil {
		t.Fatalf("cliClock: %v", err)
	}
	return clk
}

func TestPrintTasks(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	lt := task.Live(&task.Task{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		Description:     "Checar eletrólitos",
		Responsible:     "Médico",
		Deadline:        now.Add(-time.Hour),
		PersistedStatus: task.StatusAlerta,
	}, now)

	var buf bytes.Buffer
	printTasks(&buf, task.StatusForaDoPrazo, now, []*task.LiveTask{lt})
	out := buf.String()
	if !strings.HasPrefix(out, "1 task(s) fora_do_prazo at 2025-03-10T14:00:00Z") {
		t.Errorf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "Checar eletrólitos") || !strings.Contains(out, "2025-03-10 13:00") {
		t.Errorf("missing task row: %q", out)
	}
}

func TestPrintCompletion(t *testing.T) {
	catalog, err := checklist.LoadCatalogFile("../../configs/catalog.yaml")
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	day := clock.Date{Year: 2025, Month: 3, Day: 10}
	comps := []*checklist.Completion{{
		PatientID:           uuid.New(),
		Day:                 day,
		CompletedCategories: []int{2, 3},
		TotalCategories:     12,
		Progress:            checklist.Progress(2, 12),
	}}

	var buf bytes.Buffer
	printCompletion(&buf, day, catalog, comps)
	out := buf.String()
	if !strings.Contains(out, "2025-03-10: 1 patient(s)") || !strings.Contains(out, "Hídrico, Hemodinâmico") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "17% (2/12)") {
		t.Errorf("expected rounded percentage: %q", out)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "001_rounds.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied    2025-01-02 03:04:05") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestCommands_Registered(t *testing.T) {
	for _, cmd := range []string{"serve", "migrate", "tasks", "checklist", "token"} {
		found := false
		for _, c := range []interface{ Name() string }{serveCmd(), migrateCmd(), tasksCmd(), checklistCmd(), tokenCmd()} {
			if c.Name() == cmd {
				found = true
			}
		}
		if !found {
			t.Errorf("command %q not built", cmd)
		}
	}

	list, _, err := tasksCmd().Find([]string{"list"})
	if err != nil || list.Flags().Lookup("at") == nil || list.Flags().Lookup("status") == nil {
		t.Errorf("tasks list flags missing: %v", err)
	}
}
