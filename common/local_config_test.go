package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	for _, key := range []string{"QF_STORAGE", "QF_STREAMER", "QF_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestGetLocalConfig_MissingFile(t *testing.T) {
	clearConfigEnv(t)

	config, err := GetLocalConfig(filepath.Join(t.TempDir(), "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, StorageTypeSqlite, config.Server.Storage)
	assert.Equal(t, StreamerTypeMemory, config.Server.Streamer)
	assert.Equal(t, DefaultEditDebounce, config.Client.EditDebounce)
}

func TestGetLocalConfig_Yaml(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  storage: redis
  streamer: jetstream
  tokens:
    secret-token: user_1
client:
  token: secret-token
  edit_debounce: 250ms
`), 0644))

	config, err := GetLocalConfig(path)
	require.NoError(t, err)
	assert.Equal(t, StorageTypeRedis, config.Server.Storage)
	assert.Equal(t, StreamerTypeJetstream, config.Server.Streamer)
	assert.Equal(t, map[string]string{"secret-token": "user_1"}, config.Server.Tokens)
	assert.Equal(t, "secret-token", config.Client.Token)
	assert.Equal(t, 250*time.Millisecond, config.Client.EditDebounce)
}

func TestGetLocalConfig_Toml(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nstreamer = \"redis\"\n"), 0644))

	config, err := GetLocalConfig(path)
	require.NoError(t, err)
	assert.Equal(t, StreamerTypeRedis, config.Server.Streamer)
	assert.Equal(t, StorageTypeSqlite, config.Server.Storage)
}

func TestGetLocalConfig_Json(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client": {"token": "abc"}}`), 0644))

	config, err := GetLocalConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", config.Client.Token)
}

func TestGetLocalConfig_Invalid(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  storage: postgres\n"), 0644))

	_, err := GetLocalConfig(path)
	assert.ErrorContains(t, err, "invalid storage: postgres")
}

func TestGetLocalConfig_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("QF_STORAGE", "redis")
	t.Setenv("QF_API_TOKEN", "from-env")

	config, err := GetLocalConfig(filepath.Join(t.TempDir(), "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, StorageTypeRedis, config.Server.Storage)
	assert.Equal(t, "from-env", config.Client.Token)
}

func TestDiscoverConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("no files exist", func(t *testing.T) {
		t.Parallel()
		result := DiscoverConfigFile(t.TempDir(), ConfigFileCandidates)
		assert.Empty(t, result.ChosenPath)
		assert.Empty(t, result.AllFound)
	})

	t.Run("multiple files exist - returns highest precedence", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		ymlPath := filepath.Join(tmpDir, "config.yml")
		jsonPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0644))
		require.NoError(t, os.WriteFile(ymlPath, []byte(""), 0644))

		result := DiscoverConfigFile(tmpDir, ConfigFileCandidates)
		assert.Equal(t, ymlPath, result.ChosenPath)
		assert.Equal(t, []string{ymlPath, jsonPath}, result.AllFound)
	})
}

func TestGetParserForExtension(t *testing.T) {
	assert.NotNil(t, GetParserForExtension("config.YAML"))
	assert.NotNil(t, GetParserForExtension("config.toml"))
	assert.NotNil(t, GetParserForExtension("config.json"))
	assert.Nil(t, GetParserForExtension("config.txt"))
}
