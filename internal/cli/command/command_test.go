package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const (
	testToken = "opaque-access-token"
	userJSON  = `{"id":"abc","email":"a@x.com","user_metadata":{"user_name":"alice"}}`
	rowJSON   = `{"id":42,"auth_id":"abc","email":"a@x.com","username":"alice"}`
)

// backend serves the auth and profile sync endpoints.
type backend struct {
	server   *httptest.Server
	userHits atomic.Int32
	syncHits atomic.Int32
	logouts  atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		b.userHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(userJSON))
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/rpc/sync_profile", func(w http.ResponseWriter, r *http.Request) {
		b.syncHits.Add(1)
		w.Write([]byte(rowJSON))
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// writeConfig writes a config file using sqlite storage under a temp dir.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "idbridge.yaml")
	content := fmt.Sprintf(`auth:
  base_url: %s
  api_key: anon-key-123456
storage:
  engine: sqlite
  sqlite_path: %s
  user_scoped_keys: [drafts]
session:
  provider_timeout: 2s
log:
  level: error
`, baseURL, filepath.Join(dir, "kv.db"))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"idbridge"}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("idbridge %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	return m
}

func snapshotOf(t *testing.T, state map[string]any) map[string]any {
	t.Helper()
	snap, _ := state["snapshot"].(map[string]any)
	return snap
}

func TestBootstrap_SignedIn(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	mustRun(t, "-c", cfg, "token", "set", testToken)
	st := decode(t, mustRun(t, "-c", cfg, "-o", "json", "bootstrap"))

	if st["status"] != "authenticated" {
		t.Errorf("status = %v, want authenticated", st["status"])
	}
	snap := snapshotOf(t, st)
	if snap == nil || snap["internal_id"] != float64(42) || snap["email"] != "a@x.com" {
		t.Errorf("snapshot = %v", snap)
	}
	if b.syncHits.Load() != 1 {
		t.Errorf("sync calls = %d, want 1", b.syncHits.Load())
	}

	// The record survives the process: status reads it without the network.
	hits := b.userHits.Load()
	st = decode(t, mustRun(t, "-c", cfg, "-o", "json", "status"))
	if snap := snapshotOf(t, st); snap == nil || snap["internal_id"] != float64(42) {
		t.Errorf("persisted snapshot = %v", snap)
	}
	if b.userHits.Load() != hits {
		t.Error("status contacted the provider")
	}
}

func TestBootstrap_NoToken(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	st := decode(t, mustRun(t, "-c", cfg, "-o", "json", "bootstrap"))
	if st["status"] != "unauthenticated" {
		t.Errorf("status = %v, want unauthenticated", st["status"])
	}
	if snapshotOf(t, st) != nil {
		t.Error("unauthenticated state carries a snapshot")
	}
	if b.userHits.Load() != 0 {
		t.Error("provider called without a token")
	}
}

func TestWhoami(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	if _, err := run(t, "-c", cfg, "whoami"); err == nil {
		t.Error("whoami without a session should fail")
	}

	mustRun(t, "-c", cfg, "token", "set", testToken)
	view := decode(t, mustRun(t, "-c", cfg, "-o", "json", "whoami"))
	if view["internal_id"] != "42" {
		t.Errorf("internal_id = %v, want \"42\"", view["internal_id"])
	}
}

func TestSignOut(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	mustRun(t, "-c", cfg, "token", "set", testToken)
	mustRun(t, "-c", cfg, "bootstrap")
	mustRun(t, "-c", cfg, "onboarding", "--done")

	st := decode(t, mustRun(t, "-c", cfg, "-o", "json", "signout"))
	if st["status"] != "unauthenticated" || snapshotOf(t, st) != nil {
		t.Errorf("state after signout = %v", st)
	}
	if st["onboarded"] != true {
		t.Error("onboarding flag lost on signout")
	}
	if b.logouts.Load() != 1 {
		t.Errorf("logout calls = %d, want 1", b.logouts.Load())
	}

	// The token is gone, so the next bootstrap stays signed out.
	hits := b.userHits.Load()
	st = decode(t, mustRun(t, "-c", cfg, "-o", "json", "bootstrap"))
	if st["status"] != "unauthenticated" {
		t.Errorf("status after signout bootstrap = %v", st["status"])
	}
	if b.userHits.Load() != hits {
		t.Error("provider called after the token was cleared")
	}
}

func TestOnboarding(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	out := decode(t, mustRun(t, "-c", cfg, "-o", "json", "onboarding", "--done"))
	if out["onboarded"] != true {
		t.Errorf("after --done: %v", out)
	}
	out = decode(t, mustRun(t, "-c", cfg, "-o", "json", "onboarding"))
	if out["onboarded"] != true {
		t.Errorf("flag not persisted: %v", out)
	}
	out = decode(t, mustRun(t, "-c", cfg, "-o", "json", "onboarding", "--reset"))
	if out["onboarded"] != false {
		t.Errorf("after --reset: %v", out)
	}

	if _, err := run(t, "-c", cfg, "onboarding", "--done", "--reset"); err == nil {
		t.Error("--done with --reset should fail")
	}
}

func TestResolve(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)
	mustRun(t, "-c", cfg, "token", "set", testToken)

	res := decode(t, mustRun(t, "-c", cfg, "-o", "json", "resolve", "abc", "--email", "a@x.com"))
	if res["internal_id"] != float64(42) || res["path"] != "sync" {
		t.Errorf("resolve = %v", res)
	}

	if _, err := run(t, "-c", cfg, "resolve"); err == nil {
		t.Error("resolve without an id should fail")
	}
}

func TestTokenClear(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	mustRun(t, "-c", cfg, "token", "set", testToken)
	mustRun(t, "-c", cfg, "token", "clear")

	st := decode(t, mustRun(t, "-c", cfg, "-o", "json", "bootstrap"))
	if st["status"] != "unauthenticated" {
		t.Errorf("status = %v", st["status"])
	}
	if _, err := run(t, "-c", cfg, "token", "set"); err == nil {
		t.Error("token set without a value should fail")
	}
}

func TestConfigShow(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)

	out := mustRun(t, "-c", cfg, "--set", "profile.sync_path=/rpc/custom", "-o", "json", "config", "show")
	if strings.Contains(out, "anon-key-123456") {
		t.Errorf("api key not masked:\n%s", out)
	}
	m := decode(t, out)
	profile, _ := m["profile"].(map[string]any)
	if profile["sync_path"] != "/rpc/custom" {
		t.Errorf("override not applied: %v", profile)
	}

	if _, err := run(t, "-c", cfg, "--set", "storage.engine=floppy", "config", "validate"); err == nil {
		t.Error("invalid engine should fail validation")
	}
	if out := mustRun(t, "-c", cfg, "config", "validate"); !strings.Contains(out, "valid") {
		t.Errorf("validate output = %q", out)
	}
}

func TestGlobalFlags(t *testing.T) {
	if _, err := run(t, "-o", "xml", "status"); err == nil {
		t.Error("unknown output format should fail")
	}
	if _, err := parseOverrides([]string{"novalue"}); err == nil {
		t.Error("override without '=' should fail")
	}
	m, err := parseOverrides([]string{"log.level=debug", " a.b = c=d"})
	if err != nil {
		t.Fatal(err)
	}
	if m["log.level"] != "debug" || m["a.b"] != " c=d" {
		t.Errorf("overrides = %v", m)
	}
}

func TestRuntime_MissingDirectoryFileFails(t *testing.T) {
	b := newBackend(t)
	cfg := writeConfig(t, b.server.URL)
	missing := filepath.Join(t.TempDir(), "missing", "users.db")

	_, err := run(t, "-c", cfg,
		"--set", "directory.driver=sqlite",
		"--set", "directory.dsn="+missing,
		"status")
	if err == nil {
		t.Fatal("status succeeded with an unreadable directory database")
	}
	if !strings.Contains(err.Error(), "open directory") {
		t.Errorf("error = %v, want an open directory failure", err)
	}
}
