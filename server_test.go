package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/mdm_backend/middlewares"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrLedgerLocked, http.StatusLocked},
		{fmt.Errorf("%w: rice 2024-03", models.ErrLedgerLocked), http.StatusLocked},
		{models.ErrDuplicateGeneration, http.StatusConflict},
		{models.ErrLedgerNotLocked, http.StatusConflict},
		{models.ErrSnapshotNotFound, http.StatusNotFound},
		{models.ErrConfigurationMissing, http.StatusBadRequest},
		{fmt.Errorf("%w: Amount failed gt", utils.ErrValidation), http.StatusBadRequest},
		{&models.CompletionError{SchoolId: "s1", Period: models.Period{Year: 2024, Month: 3}, Err: models.ErrLedgerChain}, http.StatusConflict},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.err); got != tc.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.SessionMiddleware())
	r.GET("/api/echo/:kind/:period", func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		actor := models.ActorFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"school": schoolId, "kind": kind, "period": p.String(), "actor": actor.Name, "actor_id": actor.Id})
	})
	return r
}

func TestPathParamsAndSessionHeaders(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/echo/rice/2024-03", nil)
	req.Header.Set(middlewares.HeaderSchoolId, "school-1")
	req.Header.Set(middlewares.HeaderUserId, "7")
	req.Header.Set(middlewares.HeaderUserName, "Head Teacher")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{`"school":"school-1"`, `"kind":"rice"`, `"period":"2024-03"`, `"actor":"Head Teacher"`, `"actor_id":7`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %s missing %s", body, want)
		}
	}
	if w.Header().Get(middlewares.HeaderCorrelationId) == "" {
		t.Fatalf("expected a generated correlation id header")
	}
}

func TestPathParamsRejectBadInput(t *testing.T) {
	r := newTestRouter()
	cases := []struct {
		path   string
		school string
		want   int
	}{
		{"/api/echo/rice/2024-13", "s1", http.StatusBadRequest},
		{"/api/echo/wheat/2024-03", "s1", http.StatusBadRequest},
		{"/api/echo/amount/March", "s1", http.StatusBadRequest},
		{"/api/echo/amount/2024-03", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.school != "" {
			req.Header.Set(middlewares.HeaderSchoolId, tc.school)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status=%d want %d", tc.path, w.Code, tc.want)
		}
	}
}

func TestCurrentPeriodAlias(t *testing.T) {
	prev := currentPeriod
	currentPeriod = func() models.Period { return models.Period{Year: 2025, Month: 1} }
	defer func() { currentPeriod = prev }()

	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/echo/amount/current", nil)
	req.Header.Set(middlewares.HeaderSchoolId, "s1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"period":"2025-01"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("got %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}

func TestRouterHealthzBeforeDatabase(t *testing.T) {
	r := newRouter(logrus.New(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("healthz status=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ledgers/rice/2024-03", nil)
	req.Header.Set(middlewares.HeaderSchoolId, "s1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database connects, got %d", w.Code)
	}
}

func TestRateLimiterPassesWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(func() *redis.Client { return nil }, 1, time.Minute)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i, w.Code)
		}
	}
}

func TestRateLimiterFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	if rateLimiterFromEnv() != nil {
		t.Fatalf("limiter should be off by default")
	}
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "-4")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "15")
	rl := rateLimiterFromEnv()
	if rl == nil || rl.limit != 600 || rl.window != 15*time.Second {
		t.Fatalf("got %+v", rl)
	}
}
