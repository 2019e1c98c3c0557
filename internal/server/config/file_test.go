package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseFile_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	jsonPath := writeTempJSON(t, dir, "server.json", map[string]any{
		"endpoint_addr_http":        "www.example:9000",
		"database_dsn":              "memory",
		"secret_key":                "my_secret_key",
		"session_validity_duration": "90m",
		"session_store":             "redis",
		"redis_db":                  2,
		"image_store":               "s3",
		"s3_bucket":                 "fotos",
		"kafka_brokers":             []string{"kafka:9092"},
		"admin_sees_all_notes":      true,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", jsonPath}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFile(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, MemoryDSN, cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 90*time.Minute, cfg.SessionValidityDuration)
		assert.Equal(t, SessionStoreRedis, cfg.SessionStore)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, ImageStoreS3, cfg.ImageStore)
		assert.Equal(t, "fotos", cfg.S3Bucket)
		assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
		assert.True(t, cfg.AdminSeesAllNotes)

		// untouched keys keep their defaults
		assert.Equal(t, "public/uploads", cfg.UploadsDir)
		assert.Equal(t, 1600, cfg.ImageMaxDimension)
	})

	t.Run("loads from yaml", func(t *testing.T) {
		yamlPath := filepath.Join(dir, "server.yaml")
		require.NoError(t, os.WriteFile(yamlPath, []byte(
			"endpoint_addr_http: \":8081\"\n"+
				"session_validity_duration: 2h\n"+
				"log_format: zap\n"+
				"image_workers: 8\n"+
				"image_max_pixels: 1000000\n"+
				"kafka_topic: manutencao\n"), 0o600))

		os.Args = []string{"testbin", "-c", yamlPath}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseFile(cfg)

		assert.Equal(t, ":8081", cfg.EndpointAddrHTTP)
		assert.Equal(t, 2*time.Hour, cfg.SessionValidityDuration)
		assert.Equal(t, "zap", cfg.LogFormat)
		assert.Equal(t, 8, cfg.ImageWorkers)
		assert.Equal(t, 1_000_000, cfg.ImageMaxPixels)
		assert.Equal(t, "manutencao", cfg.KafkaTopic)
		assert.Equal(t, SessionStorePostgres, cfg.SessionStore)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{EndpointAddrHTTP: "defaults:1234", SecretKey: "key"}
		parseFile(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseFile(cfg) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.yaml")}

		cfg := &Config{}
		require.Panics(t, func() { parseFile(cfg) })
	})
}
