package config

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/mdm_backend/appctx"
	"github.com/sirupsen/logrus"
)

func TestDatabaseSettingsDSN(t *testing.T) {
	s := DatabaseSettings{User: "mdm", Password: "pw", Host: "db.internal", Port: "3306", Name: "mdm"}
	want := "mdm:pw@tcp(db.internal:3306)/mdm?multiStatements=true&parseTime=true&loc=UTC"
	if got := s.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}

	s.Host = "/cloudsql/proj:region:inst"
	want = "mdm:pw@unix(/cloudsql/proj:region:inst)/mdm?multiStatements=true&parseTime=true&loc=UTC"
	if got := s.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestDatabaseSettingsFromEnv(t *testing.T) {
	t.Setenv("DB_NAME", "mdm_test")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_LIFETIME_SECONDS", "not-a-number")
	s := DatabaseSettingsFromEnv()
	if s.Name != "mdm_test" || s.MaxOpenConns != 7 {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.ConnMaxLifetime != 300*time.Second {
		t.Fatalf("bad value should fall back to the default, got %s", s.ConnMaxLifetime)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{1: 2 * time.Second, 2: 4 * time.Second, 4: 16 * time.Second, 5: 30 * time.Second, 9: 30 * time.Second}
	for attempt, want := range cases {
		if got := retryDelay(attempt); got != want {
			t.Fatalf("retryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("") != logrus.ErrorLevel || parseLogLevel("chatty") != logrus.ErrorLevel {
		t.Fatalf("blank and unknown levels should give error level")
	}
	if parseLogLevel(" debug ") != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
}

func TestScopeFields(t *testing.T) {
	if f := ScopeFields(context.Background()); len(f) != 0 {
		t.Fatalf("expected no fields, got %v", f)
	}
	ctx := appctx.WithScope(context.Background(), appctx.Scope{SchoolId: "s1", CorrelationId: "c1"})
	f := ScopeFields(ctx)
	if f["school_id"] != "s1" || f["correlation_id"] != "c1" {
		t.Fatalf("got %v", f)
	}
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("LOCK_REQUIRES_COMPLETION", "yes")
	t.Setenv("CARRY_FORWARD_REQUIRES_COMPLETION", "0")
	if !LockRequiresCompletion() {
		t.Fatalf("expected lock flag on")
	}
	if CarryForwardRequiresCompletion() {
		t.Fatalf("expected carry-forward flag off")
	}
}
