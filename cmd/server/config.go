package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Browser  BrowserConfig
	Engine   EngineConfig
	Storage  StorageConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// BrowserConfig holds browser session configuration.
type BrowserConfig struct {
	Headless       bool
	AutoInstall    bool
	UserAgent      string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
}

// EngineConfig holds test execution engine configuration.
type EngineConfig struct {
	ArtifactsDir string
	MaxWorkers   int
}

// StorageConfig holds artifact mirroring configuration.
type StorageConfig struct {
	Mirror          bool          // Upload finalized artifacts to blob storage
	Type            string        // "local" or "s3"
	BaseDir         string        // For local: "./uploads"
	S3Bucket        string        // For S3: bucket name
	S3Region        string        // For S3: AWS region
	S3PresignExpiry time.Duration // Presigned URL expiration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "uitester")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.auto_install", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.locale", "")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.viewport_width", 0)
	v.SetDefault("browser.viewport_height", 0)

	v.SetDefault("engine.artifacts_dir", "./artifacts")
	v.SetDefault("engine.max_workers", 2)

	v.SetDefault("storage.mirror", false)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./uploads")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_presign_expiry", "15m")

	v.SetDefault("log.level", "info")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults
	}

	// Parse configuration
	var config Config

	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetInt("server.port")
	config.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	config.Server.WriteTimeout = v.GetDuration("server.write_timeout")

	config.Database.Host = v.GetString("database.host")
	config.Database.Port = v.GetInt("database.port")
	config.Database.User = v.GetString("database.user")
	config.Database.Password = v.GetString("database.password")
	config.Database.Database = v.GetString("database.database")
	config.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	config.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")

	config.Browser.Headless = v.GetBool("browser.headless")
	config.Browser.AutoInstall = v.GetBool("browser.auto_install")
	config.Browser.UserAgent = v.GetString("browser.user_agent")
	config.Browser.Locale = v.GetString("browser.locale")
	config.Browser.Timezone = v.GetString("browser.timezone")
	config.Browser.ViewportWidth = v.GetInt("browser.viewport_width")
	config.Browser.ViewportHeight = v.GetInt("browser.viewport_height")

	config.Engine.ArtifactsDir = v.GetString("engine.artifacts_dir")
	config.Engine.MaxWorkers = v.GetInt("engine.max_workers")

	config.Storage.Mirror = v.GetBool("storage.mirror")
	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3PresignExpiry = v.GetDuration("storage.s3_presign_expiry")

	config.Log.Level = v.GetString("log.level")

	return &config, nil
}
