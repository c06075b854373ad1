// internal/config/config.go
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/c-dragonai/stockllm/internal/datasync"
	"github.com/c-dragonai/stockllm/internal/storage"
)

// Accepted profile writers.
const (
	ProfileWriterCLI  = "cli"
	ProfileWriterFile = "file"
)

type Config struct {
	App     AppConfig
	Profile ProfileConfig
	Remote  RemoteConfig
	Sync    SyncConfig
}

type AppConfig struct {
	EnvFile  string
	DataDir  string
	Platform string
	LogLevel string
}

type ProfileConfig struct {
	Name   string
	Writer string
	Verify bool
}

type RemoteConfig struct {
	URI       string
	Endpoint  string
	PathStyle bool
	UseSSL    bool
}

type SyncConfig struct {
	Engine      string
	Skip        bool
	Concurrency int
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	Timeout     time.Duration
}

var (
	once     sync.Once
	instance *Config
)

// Load returns the process-wide configuration, built once from defaults and
// the environment.
func Load() *Config {
	once.Do(func() {
		instance = FromViper(viper.New())
	})
	return instance
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("BOOTSTRAP_ENV_FILE", ".env")
	v.SetDefault("BOOTSTRAP_DATA_DIR", "./data")
	v.SetDefault("BOOTSTRAP_PLATFORM", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("BOOTSTRAP_PROFILE", "init-conf")
	v.SetDefault("BOOTSTRAP_PROFILE_WRITER", ProfileWriterCLI)
	v.SetDefault("BOOTSTRAP_VERIFY_PROFILE", false)

	v.SetDefault("BOOTSTRAP_REMOTE", "s3://ai-s3-disk/datasets/StocksData/")
	v.SetDefault("BOOTSTRAP_S3_ENDPOINT", "")
	v.SetDefault("BOOTSTRAP_S3_PATH_STYLE", false)
	v.SetDefault("BOOTSTRAP_S3_USE_SSL", true)

	v.SetDefault("BOOTSTRAP_SYNC_ENGINE", datasync.EngineCLI)
	v.SetDefault("BOOTSTRAP_SKIP_SYNC", false)
	v.SetDefault("SYNC_CONCURRENCY", 4)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_BASE_DELAY", "1s")
	v.SetDefault("SYNC_MAX_DELAY", "30s")
	v.SetDefault("SYNC_JITTER", 0.2)
	v.SetDefault("SYNC_TIMEOUT", "30m")
}

// FromViper reads a Config from v after applying defaults and environment.
func FromViper(v *viper.Viper) *Config {
	SetDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		App: AppConfig{
			EnvFile:  v.GetString("BOOTSTRAP_ENV_FILE"),
			DataDir:  v.GetString("BOOTSTRAP_DATA_DIR"),
			Platform: v.GetString("BOOTSTRAP_PLATFORM"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Profile: ProfileConfig{
			Name:   v.GetString("BOOTSTRAP_PROFILE"),
			Writer: v.GetString("BOOTSTRAP_PROFILE_WRITER"),
			Verify: v.GetBool("BOOTSTRAP_VERIFY_PROFILE"),
		},
		Remote: RemoteConfig{
			URI:       v.GetString("BOOTSTRAP_REMOTE"),
			Endpoint:  v.GetString("BOOTSTRAP_S3_ENDPOINT"),
			PathStyle: v.GetBool("BOOTSTRAP_S3_PATH_STYLE"),
			UseSSL:    v.GetBool("BOOTSTRAP_S3_USE_SSL"),
		},
		Sync: SyncConfig{
			Engine:      v.GetString("BOOTSTRAP_SYNC_ENGINE"),
			Skip:        v.GetBool("BOOTSTRAP_SKIP_SYNC"),
			Concurrency: v.GetInt("SYNC_CONCURRENCY"),
			MaxRetries:  v.GetInt("SYNC_MAX_RETRIES"),
			BaseDelay:   v.GetDuration("SYNC_BASE_DELAY"),
			MaxDelay:    v.GetDuration("SYNC_MAX_DELAY"),
			Jitter:      v.GetFloat64("SYNC_JITTER"),
			Timeout:     v.GetDuration("SYNC_TIMEOUT"),
		},
	}
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	if c.App.DataDir == "" {
		return fmt.Errorf("data dir must be provided")
	}
	if c.App.EnvFile == "" {
		return fmt.Errorf("env file must be provided")
	}
	if c.Profile.Name == "" {
		return fmt.Errorf("profile name must be provided")
	}
	switch c.Profile.Writer {
	case ProfileWriterCLI, ProfileWriterFile:
	default:
		return fmt.Errorf("unknown profile writer %q (want %s or %s)", c.Profile.Writer, ProfileWriterCLI, ProfileWriterFile)
	}
	switch c.Sync.Engine {
	case datasync.EngineCLI, datasync.EngineS3:
	case datasync.EngineMinio:
		if c.Remote.Endpoint == "" {
			return fmt.Errorf("sync engine %s requires an endpoint", datasync.EngineMinio)
		}
	default:
		return fmt.Errorf("unknown sync engine %q", c.Sync.Engine)
	}
	if _, err := storage.ParseLocation(c.Remote.URI); err != nil {
		return err
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync max retries must not be negative")
	}
	return nil
}
