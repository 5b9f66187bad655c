// Command phishtrack-cli is an operator client for the phishtrack RPC surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/and161185/phishtrack/internal/beacon"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "phishtrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "phishtrack")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- rpc ----

type rpcClient struct {
	base string
	http *http.Client
}

func newRPCClient(base string) *rpcClient {
	return &rpcClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 30 * time.Second}}
}

// call issues an RPC request and decodes a JSON reply into out.
func (c *rpcClient) call(ctx context.Context, path string, auth func(*http.Request), out any) error {
	req, err := http.NewRequestWithContext(ctx, "RPC", c.base+path, nil)
	if err != nil {
		return err
	}
	auth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func basic(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func (c *rpcClient) login(ctx context.Context, user, pass string) (string, time.Time, error) {
	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := c.call(ctx, "/login", basic(user, pass), &out); err != nil {
		return "", time.Time{}, err
	}
	exp, err := time.Parse(time.RFC3339, out.ExpiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("bad expires_at: %w", err)
	}
	return out.Token, exp, nil
}

// ---- commands ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "phishtrack-cli:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "phishtrack-cli",
		Usage:   "operator client",
		Version: fmt.Sprintf("%s (%s)", version, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080", Usage: "server base URL", EnvVars: []string{"PT_SERVER"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "authenticate and save a token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					tok, exp, err := newRPCClient(c.String("server")).login(c.Context, c.String("user"), c.String("password"))
					if err != nil {
						return err
					}
					if err := saveToken(tok, exp); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "logged in until", exp.Local().Format(time.RFC1123))
					return nil
				},
			},
			{
				Name:  "ping",
				Usage: "check the server is reachable and the token valid",
				Action: func(c *cli.Context) error {
					var pong bool
					if err := authedCall(c, "/ping", &pong); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, pong)
					return nil
				},
			},
			{
				Name:  "server-version",
				Usage: "print the server version",
				Action: func(c *cli.Context) error {
					var out struct {
						Version string `json:"version"`
					}
					if err := authedCall(c, "/version", &out); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, out.Version)
					return nil
				},
			},
			{
				Name:  "deaddrop-url",
				Usage: "build a test call-in URL for a deployment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "deployment", Required: true},
					&cli.StringFlag{Name: "local-user", Required: true},
					&cli.StringFlag{Name: "local-host", Required: true},
					&cli.StringSliceFlag{Name: "ip"},
				},
				Action: func(c *cli.Context) error {
					tok, err := beacon.Encode(beacon.Record{
						DeploymentID:     c.String("deployment"),
						LocalUsername:    c.String("local-user"),
						LocalHostname:    c.String("local-host"),
						LocalIPAddresses: strings.Join(c.StringSlice("ip"), " "),
					}, byte(time.Now().UnixNano()))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s/kpdd?token=%s\n", strings.TrimRight(c.String("server"), "/"), url.QueryEscape(tok))
					return nil
				},
			},
		},
	}
}

func authedCall(c *cli.Context, path string, out any) error {
	tok, err := loadToken()
	if err != nil {
		return err
	}
	return newRPCClient(c.String("server")).call(c.Context, path, bearer(tok), out)
}
