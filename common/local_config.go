package common

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	StorageTypeSqlite = "sqlite"
	StorageTypeRedis  = "redis"

	StreamerTypeMemory    = "memory"
	StreamerTypeRedis     = "redis"
	StreamerTypeJetstream = "jetstream"
)

var ValidStorageTypes = []string{StorageTypeSqlite, StorageTypeRedis}
var ValidStreamerTypes = []string{StreamerTypeMemory, StreamerTypeRedis, StreamerTypeJetstream}

const DefaultEditDebounce = 500 * time.Millisecond

// ConfigFileCandidates lists accepted config file names, highest precedence first.
var ConfigFileCandidates = []string{"config.yml", "config.yaml", "config.toml", "config.json"}

type ServerConfig struct {
	Storage  string `koanf:"storage"`
	Streamer string `koanf:"streamer"`
	// Tokens maps bearer tokens to the user id they authenticate as.
	Tokens map[string]string `koanf:"tokens"`
}

type ClientConfig struct {
	Token        string        `koanf:"token"`
	EditDebounce time.Duration `koanf:"edit_debounce"`
}

// LocalConfig represents the local configuration file structure
type LocalConfig struct {
	Server ServerConfig `koanf:"server"`
	Client ClientConfig `koanf:"client"`
}

func (c ServerConfig) Validate() error {
	if c.Storage != "" && !slices.Contains(ValidStorageTypes, c.Storage) {
		return fmt.Errorf("invalid storage: %s", c.Storage)
	}
	if c.Streamer != "" && !slices.Contains(ValidStreamerTypes, c.Streamer) {
		return fmt.Errorf("invalid streamer: %s", c.Streamer)
	}
	for token, userId := range c.Tokens {
		if token == "" || userId == "" {
			return fmt.Errorf("tokens must map a non-empty token to a non-empty user id")
		}
	}
	return nil
}

// Validate ensures the LocalConfig is valid
func (c LocalConfig) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if c.Client.EditDebounce < 0 {
		return fmt.Errorf("invalid client config: edit_debounce must not be negative")
	}
	return nil
}

// withDefaults fills in unset values and applies environment overrides.
func (c LocalConfig) withDefaults() LocalConfig {
	if v := os.Getenv("QF_STORAGE"); v != "" {
		c.Server.Storage = v
	}
	if v := os.Getenv("QF_STREAMER"); v != "" {
		c.Server.Streamer = v
	}
	if v := os.Getenv("QF_API_TOKEN"); v != "" {
		c.Client.Token = v
	}
	if c.Server.Storage == "" {
		c.Server.Storage = StorageTypeSqlite
	}
	if c.Server.Streamer == "" {
		c.Server.Streamer = StreamerTypeMemory
	}
	if c.Client.EditDebounce == 0 {
		c.Client.EditDebounce = DefaultEditDebounce
	}
	return c
}

// GetLocalConfig loads configuration from the given file path. A missing file
// yields the defaults. YAML, TOML and JSON are accepted, chosen by extension.
func GetLocalConfig(configPath string) (LocalConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := LocalConfig{}.withDefaults()
		return config, config.Validate()
	}

	parser := GetParserForExtension(configPath)
	if parser == nil {
		return LocalConfig{}, fmt.Errorf("unsupported config file type: %s", configPath)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), parser); err != nil {
		return LocalConfig{}, fmt.Errorf("error loading config: %w", err)
	}

	var config LocalConfig
	if err := k.Unmarshal("", &config); err != nil {
		return LocalConfig{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return LocalConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadLocalConfig discovers the config file in the default config directory
// and loads it.
func LoadLocalConfig() (LocalConfig, error) {
	result := DiscoverConfigFile(GetConfigDir(), ConfigFileCandidates)
	if result.ChosenPath == "" {
		return GetLocalConfig(filepath.Join(GetConfigDir(), ConfigFileCandidates[0]))
	}
	return GetLocalConfig(result.ChosenPath)
}

// GetConfigDir returns the quoteflow config directory, overridable with
// QF_CONFIG_HOME.
func GetConfigDir() string {
	if dir := os.Getenv("QF_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, "quoteflow")
}
