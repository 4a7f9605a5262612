package obs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/user/me":                    "/user/me",
		"/user/me/change-password":    "/user/me/change-password",
		"/user/alice":                 "/user/:username",
		"/user/alice/roles":           "/user/:username/roles",
		"/user/alice/change-email":    "/user/:username/change-email",
		"/user/alice/delete":          "/user/:username/delete",
		"/user/alice/extra":           "/user/alice/extra",
		"/audit?limit=10":             "/audit",
		"/auth/login":                 "/auth/login",
		"/user/bob/change-password?x": "/user/:username/change-password",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/user/:username", "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/carol", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/user/:username", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestObserveCredentialFlow(t *testing.T) {
	okBefore := testutil.ToFloat64(credentialFlows.WithLabelValues("login", "ok"))
	errBefore := testutil.ToFloat64(credentialFlows.WithLabelValues("login", "error"))

	ObserveCredentialFlow("login", nil)
	ObserveCredentialFlow("login", errors.New("boom"))

	if got := testutil.ToFloat64(credentialFlows.WithLabelValues("login", "ok")) - okBefore; got != 1 {
		t.Fatalf("ok delta = %v", got)
	}
	if got := testutil.ToFloat64(credentialFlows.WithLabelValues("login", "error")) - errBefore; got != 1 {
		t.Fatalf("error delta = %v", got)
	}
}

func TestInitBuildInfo(t *testing.T) {
	InitBuildInfo("1.2.3", "abc123")
	InitBuildInfo("1.2.4", "def456")

	if n := testutil.CollectAndCount(buildInfo); n != 1 {
		t.Fatalf("expected one build_info series, got %d", n)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("1.2.4", "def456", runtime.Version())); v != 1 {
		t.Fatalf("build_info = %v, want 1", v)
	}
}

func TestResolveCommitKeepsExplicitValue(t *testing.T) {
	if got := resolveCommit("cafebabe"); got != "cafebabe" {
		t.Fatalf("resolveCommit = %q", got)
	}
	if got := resolveCommit(""); got == "" {
		t.Fatal("resolveCommit returned empty")
	}
}
