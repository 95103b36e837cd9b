package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anishxyz/integrations/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs rootCmd with args after resetting every flag, since cobra
// keeps flag values between executions.
func execute(t *testing.T, env core.MapEnv, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	original := runtimeOptions
	runtimeOptions = []core.Option{core.WithEnv(env)}
	defer func() { runtimeOptions = original }()

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		if slice, ok := flag.Value.(pflag.SliceValue); ok {
			_ = slice.Replace(nil)
		} else {
			_ = flag.Value.Set(flag.DefValue)
		}
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func sqliteURL(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "credentials.db") + "?_foreign_keys=on"
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "integrations", cfg.ServiceName)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	require.NoError(t, cfg.Validate())

	cfg, err = LoadConfig(map[string]string{
		"INTEGRATIONS_STORE":        "sqlite",
		"INTEGRATIONS_ENV_FILES":    ".env,.env.local",
		"INTEGRATIONS_REFRESH_LEAD": "90s",
		"REDIS_URL":                 "redis://cache:6379/2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".env", ".env.local"}, cfg.EnvFiles)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Error(t, cfg.Validate(), "sqlite needs a database url")

	managerCfg := cfg.ManagerConfig()
	assert.Equal(t, 90, managerCfg.RefreshLeadSeconds)
	assert.Equal(t, []string{".env", ".env.local"}, managerCfg.EnvFiles)

	cfg.Store = "etcd"
	assert.Error(t, cfg.Validate())
}

func TestNewLogger_FiltersByLevelAndNamesComponents(t *testing.T) {
	out := new(bytes.Buffer)
	root := newLogger(out, "warn")

	manager := root.GetLogger("manager")
	manager.Info("hidden below warn")
	manager.Warn("refresh failed", "provider", "github")

	logged := out.String()
	assert.NotContains(t, logged, "hidden below warn")
	assert.Contains(t, logged, "refresh failed")
	assert.Contains(t, logged, "logger=manager")
	assert.Contains(t, logged, "provider=github")
	assert.Contains(t, logged, "level=warn")
}

func TestParseSubject(t *testing.T) {
	subject, err := parseSubject(" user_1 ")
	require.NoError(t, err)
	assert.Equal(t, "user_1", subject.String())

	subject, err = parseSubject(`{"user":"u1","org":"o1"}`)
	require.NoError(t, err)
	assert.True(t, subject.IsMapping())

	_, err = parseSubject("")
	assert.Error(t, err)
	_, err = parseSubject("{not json")
	assert.Error(t, err)
}

func TestProvidersCmd_ListsBuiltins(t *testing.T) {
	out, err := execute(t, core.MapEnv{"SLACK_CLIENT_ID": "slack-app"}, "providers")
	require.NoError(t, err)
	for _, name := range []string{"asana", "github", "google", "hubspot", "notion", "slack"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "gmail,google_calendar")
	assert.Regexp(t, `slack\s+oauth2`, out)

	out, err = execute(t, core.MapEnv{}, "providers", "--json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Len(t, names, 6)
}

func TestCredentialsCmd_Lifecycle(t *testing.T) {
	dsn := sqliteURL(t)
	env := core.MapEnv{}
	store := []string{"--store", "sqlite", "--database-url", dsn, "--app-key", "cli-test-key"}

	out, err := execute(t, env, append([]string{"credentials", "set", "slack", "--subject", "user_1",
		"--access-token", "xoxb-1", "--refresh-token", "xoxe-1", "--scope", "chat:write"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "stored slack credentials for user_1")

	out, err = execute(t, env, append([]string{"credentials", "get", "slack", "--subject", "user_1"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, core.RedactedValue)
	assert.NotContains(t, out, "xoxb-1")

	out, err = execute(t, env, append([]string{"credentials", "get", "slack", "--subject", "user_1", "--reveal"}, store...)...)
	require.NoError(t, err)
	var token map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &token))
	assert.Equal(t, "xoxb-1", token["access_token"])
	assert.Equal(t, "xoxe-1", token["refresh_token"])

	_, err = execute(t, env, "credentials", "get", "slack", "--subject", "user_1",
		"--store", "sqlite", "--database-url", dsn, "--app-key", "another-key")
	assert.Error(t, err, "a different app key must not decrypt the record")

	_, err = execute(t, env, append([]string{"credentials", "delete", "slack", "--subject", "user_1"}, store...)...)
	require.NoError(t, err)
	_, err = execute(t, env, append([]string{"credentials", "get", "slack", "--subject", "user_1"}, store...)...)
	assert.ErrorContains(t, err, "no credentials stored")
}

func TestCredentialsCmd_SetValidatesInput(t *testing.T) {
	_, err := execute(t, core.MapEnv{}, "credentials", "set", "github", "--subject", "u1")
	assert.ErrorContains(t, err, "--access-token")

	_, err = execute(t, core.MapEnv{}, "credentials", "set", "github", "--subject", "u1",
		"--json", `{"access_token":"a"}`, "--access-token", "b")
	assert.ErrorContains(t, err, "either")

	_, err = execute(t, core.MapEnv{}, "credentials", "set", "github", "--subject", "u1", "--json", "[1]")
	assert.Error(t, err)
}

func TestSessionCmd_ResolvesContainers(t *testing.T) {
	env := core.MapEnv{"GITHUB_TOKEN": "ghp_app"}

	out, err := execute(t, env, "session", "--subject", "user_1", "--token", "slack=xoxb-inline")
	require.NoError(t, err)
	var containers map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &containers))
	assert.Contains(t, containers, "github")
	assert.Contains(t, containers, "slack")
	assert.NotContains(t, containers, "notion")
	assert.Equal(t, core.RedactedValue, containers["github"]["Token"])

	out, err = execute(t, env, "session", "--subject", "user_1", "--provider", "github", "--reveal")
	require.NoError(t, err)
	assert.Contains(t, out, "ghp_app")

	_, err = execute(t, core.MapEnv{}, "session", "--subject", "user_1", "--provider", "notion")
	assert.Error(t, err)

	_, err = execute(t, env, "session", "--subject", "user_1", "--token", "slack")
	assert.ErrorContains(t, err, "container=token")
}

func newTokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "gho_" + r.PostForm.Get("code"),
				"refresh_token": "ghr_1",
				"token_type":    "bearer",
				"scope":         "repo,read:org",
				"expires_in":    3600,
			})
		case "refresh_token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "gho_refreshed",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unsupported_grant_type"})
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestOAuthCmds_ExchangeThenRefresh(t *testing.T) {
	tokenServer, calls := newTokenServer(t)
	env := core.MapEnv{
		"GITHUB_CLIENT_ID":     "cid",
		"GITHUB_CLIENT_SECRET": "csecret",
		"GITHUB_TOKEN_URL":     tokenServer.URL,
	}
	store := []string{"--store", "sqlite", "--database-url", sqliteURL(t)}

	out, err := execute(t, env, append([]string{"authorize", "github",
		"--redirect-uri", "http://localhost/cb", "--state", "fixed-state"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "https://github.com/login/oauth/authorize?")
	assert.Contains(t, out, "client_id=cid")
	assert.Contains(t, out, "state: fixed-state")

	out, err = execute(t, env, append([]string{"exchange", "github", "--subject", "user_1", "--code", "abc"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, core.RedactedValue)

	out, err = execute(t, env, append([]string{"credentials", "get", "github", "--subject", "user_1", "--reveal"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "gho_abc")

	out, err = execute(t, env, append([]string{"refresh", "github", "--subject", "user_1", "--reveal"}, store...)...)
	require.NoError(t, err)
	var run map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.EqualValues(t, 1, run["attempts"])
	token := run["token"].(map[string]any)
	assert.Equal(t, "gho_refreshed", token["access_token"])
	assert.Equal(t, "ghr_1", token["refresh_token"])

	out, err = execute(t, env, append([]string{"refresh", "github", "--subject", "user_1", "--if-needed"}, store...)...)
	require.NoError(t, err)
	var fresh map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fresh))
	assert.Equal(t, false, fresh["refresh_attempted"])
	assert.EqualValues(t, 2, calls.Load())

	_, err = execute(t, env, append([]string{"exchange", "github"}, store...)...)
	assert.Error(t, err, "exchange needs a code")
}

func TestServeRouter_ExchangeSessionAndMetrics(t *testing.T) {
	tokenServer, _ := newTokenServer(t)
	cfg, err := LoadConfig(map[string]string{})
	require.NoError(t, err)
	rt, err := newRuntime(context.Background(), cfg, new(bytes.Buffer), core.WithEnv(core.MapEnv{
		"GITHUB_CLIENT_ID":     "cid",
		"GITHUB_CLIENT_SECRET": "csecret",
		"GITHUB_TOKEN_URL":     tokenServer.URL,
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	server := httptest.NewServer(newRouter(rt))
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/oauth/github/exchange", "application/json",
		strings.NewReader(`{"subject":"user_9","code":"xyz"}`))
	require.NoError(t, err)
	var token map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, token)
	assert.Equal(t, core.RedactedValue, token["access_token"])

	stored, err := rt.manager.LoadCredentials(context.Background(), "github", core.SubjectID("user_9"))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "gho_xyz", stored.AccessToken)

	resp, err = http.Get(server.URL + "/sessions/user_9?provider=github")
	require.NoError(t, err)
	var containers map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&containers))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.RedactedValue, containers["github"]["Token"])

	resp, err = http.Get(server.URL + "/sessions/user_9?provider=notion")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(server.URL+"/oauth/github/exchange", "application/json",
		strings.NewReader(`{"subject":"user_9"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/providers")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	resp.Body.Close()
	assert.Contains(t, names, "github")

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	metrics := new(bytes.Buffer)
	_, _ = metrics.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, metrics.String(), `operation="exchange"`)
	assert.Contains(t, metrics.String(), `operation="session"`)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
