package config

import "time"

// Profile storage drivers.
const (
	ProfileMemory   = "memory"
	ProfileFile     = "file"
	ProfileSQLite   = "sqlite"
	ProfilePostgres = "postgres"
	ProfileS3       = "s3"
	ProfileRemote   = "remote"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowOrigins:    []string{"*"},
			Gzip:            true,
		},
		Database: DatabaseConfig{
			Driver:  DriverSQLite,
			Path:    "cthulhu_news.db",
			Host:    "localhost",
			Port:    5432,
			User:    "cthulhu",
			Name:    "cthulhu_news",
			SSLMode: "disable",
		},
		JWT: JWTConfig{
			Secret:     "change-me-in-production",
			Expiration: 365 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
		News: NewsConfig{
			RefreshInterval: 30 * time.Minute,
			FetchTimeout:    30 * time.Second,
			MaxArticles:     50,
		},
		Cache: CacheConfig{
			TTL:  time.Minute,
			Size: 100,
		},
		Profile: ProfileConfig{
			Driver:    ProfileFile,
			Path:      "profile.json",
			Namespace: "default",
			TokenPath: "visitor.token",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
	}
}
