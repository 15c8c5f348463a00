package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	// Given: минимальный конфиг с хранилищем в памяти и dev-аутентификацией
	data := []byte(`
http: {addr: ":8080"}
grpc: {addr: ":9090"}
storage: {driver: memory}
auth: {mode: header}
`)

	// When
	cfg, err := Parse(data)

	// Then
	require.NoError(t, err)
	require.Equal(t, "chat-service", cfg.Logging.Service)
	require.Equal(t, "dev", cfg.Logging.Env)
	require.Equal(t, "std", cfg.Logging.Backend)
	require.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeoutOr(30*time.Second))
	require.Equal(t, 15*time.Second, cfg.WS.PingEveryOr(15*time.Second))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no http addr", `grpc: {addr: ":9090"}`},
		{"postgres without dsn", "http: {addr: \":8080\"}\ngrpc: {addr: \":9090\"}\nauth: {mode: header}"},
		{"unknown driver", "http: {addr: \":8080\"}\ngrpc: {addr: \":9090\"}\nstorage: {driver: redis}\nauth: {mode: header}"},
		{"jwt without key", "http: {addr: \":8080\"}\ngrpc: {addr: \":9090\"}\nstorage: {driver: memory}"},
		{"unknown auth mode", "http: {addr: \":8080\"}\ngrpc: {addr: \":9090\"}\nstorage: {driver: memory}\nauth: {mode: basic}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	// Given
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("AUTH_MODE", "header")
	data := []byte("http: {addr: \":8080\"}\ngrpc: {addr: \":9090\"}\npostgres: {dsn: \"postgres://file\"}")

	// When
	cfg, err := Parse(data)

	// Then
	require.NoError(t, err)
	require.Equal(t, "postgres://env", cfg.Postgres.DSN)
	require.Equal(t, AuthHeader, cfg.Auth.Mode)
	require.Equal(t, StoragePostgres, cfg.Storage.Driver)
}

func TestLoadConfig_FromPath(t *testing.T) {
	// Given
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("http: {addr: \":1\"}\ngrpc: {addr: \":2\"}\nstorage: {driver: memory}\nauth: {mode: header}\nws: {pingEvery: 5s}"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	// When
	cfg, err := LoadConfig()

	// Then
	require.NoError(t, err)
	require.Equal(t, ":1", cfg.HTTP.Addr)
	require.Equal(t, 5*time.Second, cfg.WS.PingEveryOr(time.Second))
}
