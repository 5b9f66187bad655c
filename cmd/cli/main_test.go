package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/and161185/phishtrack/internal/beacon"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "phishtrack")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken("tok", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}
	if err := saveToken("tok2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

// fakeRPC mimics the server's RPC routes.
func fakeRPC(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "RPC" {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		switch r.URL.Path {
		case "/login":
			if u, p, ok := r.BasicAuth(); !ok || u != "admin" || p != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":      "jwt-1",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case "/version":
			if r.Header.Get("Authorization") != "Bearer jwt-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"version": "9.9"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.RunContext(context.Background(), append([]string{"phishtrack-cli"}, args...))
	return out.String(), err
}

func Test_LoginAndVersion(t *testing.T) {
	_ = withTmpConfig(t)
	srv := fakeRPC(t)
	defer srv.Close()

	if _, err := run(t, "--server", srv.URL, "server-version"); err == nil {
		t.Fatalf("want error before login")
	}
	if _, err := run(t, "--server", srv.URL, "login", "-u", "admin", "-p", "bad"); err == nil {
		t.Fatalf("want error for bad password")
	}
	if _, err := run(t, "--server", srv.URL, "login", "-u", "admin", "-p", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := run(t, "--server", srv.URL, "server-version")
	if err != nil || strings.TrimSpace(out) != "9.9" {
		t.Fatalf("server-version: out=%q err=%v", out, err)
	}
}

func Test_DeaddropURL(t *testing.T) {
	out, err := run(t, "--server", "http://track.example/", "deaddrop-url",
		"--deployment", "dep1", "--local-user", "jdoe", "--local-host", "WS1", "--ip", "10.0.0.1", "--ip", "10.0.0.2")
	if err != nil {
		t.Fatalf("deaddrop-url: %v", err)
	}
	u, err := url.Parse(strings.TrimSpace(out))
	if err != nil || u.Path != "/kpdd" {
		t.Fatalf("bad url %q: %v", out, err)
	}
	rec, err := beacon.Decode(u.Query().Get("token"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := beacon.Record{DeploymentID: "dep1", LocalUsername: "jdoe", LocalHostname: "WS1", LocalIPAddresses: "10.0.0.1 10.0.0.2"}
	if rec != want {
		t.Fatalf("record=%+v, want %+v", rec, want)
	}
}
