package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, BackendMemory, cfg.Sessions.Backend)
	assert.Equal(t, 20, cfg.Preview.Limit)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeprep.yaml", `
pipeline_id: p-42
console:
  base_url: https://console.example.com/api
  cache_ttl: 1m
preview:
  limit: 5
sessions:
  backend: redis
  ttl: 2h
redis:
  addr: cache:6379
  db: 2
temporal:
  host_port: temporal:7233
`)
	env := writeFile(t, dir, "empty.env", "")

	cfg, err := Load(path, env)
	require.NoError(t, err)
	assert.Equal(t, "p-42", cfg.PipelineID)
	assert.Equal(t, "https://console.example.com/api", cfg.Console.BaseURL)
	assert.Equal(t, time.Minute, cfg.Console.CacheTTL)
	assert.Equal(t, 5, cfg.Preview.Limit)
	assert.Equal(t, BackendRedis, cfg.Sessions.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "temporal:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "pipeprep", cfg.Temporal.TaskQueue, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeprep.yaml", "pipeline_id: from-file\npreview:\n  limit: 5\n")
	env := writeFile(t, dir, ".env", "PIPEPREP_CONSOLE_TOKEN=secret\nPIPEPREP_PREVIEW_LIMIT=7\n")
	t.Setenv("PIPEPREP_PIPELINE_ID", "from-env")
	t.Setenv("PIPEPREP_METRICS_ENABLED", "true")
	t.Setenv("PIPEPREP_PREVIEW_LIMIT", "9")
	t.Cleanup(func() { os.Unsetenv("PIPEPREP_CONSOLE_TOKEN") })

	cfg, err := Load(path, env)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.PipelineID)
	assert.Equal(t, "secret", cfg.Console.Token)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9, cfg.Preview.Limit, "process env wins over .env")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err, "explicit config must exist")

	unknown := writeFile(t, dir, "unknown.yaml", "nope: 1\n")
	_, err = Load(unknown, filepath.Join(dir, "missing.env"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "sessions:\n  backend: mongo\n")
	env := writeFile(t, dir, "empty.env", "")
	_, err = Load(bad, env)
	assert.ErrorContains(t, err, "unknown sessions.backend")

	ok := writeFile(t, dir, "ok.yaml", "")
	t.Setenv("PIPEPREP_REDIS_DB", "two")
	_, err = Load(ok, env)
	assert.ErrorContains(t, err, "PIPEPREP_REDIS_DB")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Sessions.Backend = BackendPostgres
	assert.Error(t, cfg.Validate())
	cfg.Postgres.DSN = "postgres://localhost/pipeprep"
	assert.NoError(t, cfg.Validate())

	cfg.S3.Endpoint = "minio:9000"
	assert.ErrorContains(t, cfg.Validate(), "s3.bucket")

	cfg = Default()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestApplyEnv_Lookup(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"PIPEPREP_SESSION_BACKEND": "file",
		"PIPEPREP_SESSION_TTL":     "15m",
		"PIPEPREP_S3_USE_SSL":      "1",
	}
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Sessions.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.TTL)
	assert.True(t, cfg.S3.UseSSL)
}

func TestSessions_Keys(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	b64Key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	active, fallback, err := Sessions{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Empty(t, fallback)

	active, fallback, err = Sessions{EncryptionKey: hexKey, FallbackKeys: []string{b64Key}}.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Equal(t, byte(0xab), active[0])
	require.Len(t, fallback, 1)
	assert.Equal(t, byte(7), fallback[0][0])

	_, _, err = Sessions{EncryptionKey: "c2hvcnQ="}.Keys()
	assert.ErrorContains(t, err, "32 bytes")

	_, _, err = Sessions{FallbackKeys: []string{hexKey}}.Keys()
	assert.ErrorContains(t, err, "requires sessions.encryption_key")

	cfg := Default()
	cfg.Sessions.EncryptionKey = "not-a-key"
	assert.ErrorContains(t, cfg.Validate(), "sessions.encryption_key")

	cfg = Default()
	cfg.Sessions.Redact = []string{"("}
	assert.ErrorContains(t, cfg.Validate(), "sessions.redact")
}

func TestApplyEnv_Lists(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "PIPEPREP_SESSION_REDACT" {
			return "password, token ,,", true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "token"}, cfg.Sessions.Redact)
}
