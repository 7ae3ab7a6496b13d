package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore: CTHULHU_SERVER__ADDRESS -> server.address.
const EnvPrefix = "CTHULHU_"

// Load builds the configuration in three layers: defaults, the YAML file at
// path (skipped when it does not exist) and CTHULHU_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	switch _, err := os.Stat(path); {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("config: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// envKey maps CTHULHU_SERVER__ADDRESS to server.address.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

// Save writes c as YAML, creating the parent directory. The file may hold the
// JWT secret and a visitor token, so it is private to the owner.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	enc := yamlv3.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return f.Close()
}

var validDatabaseDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

var validProfileDrivers = map[string]bool{
	ProfileMemory:   true,
	ProfileFile:     true,
	ProfileSQLite:   true,
	ProfilePostgres: true,
	ProfileS3:       true,
	ProfileRemote:   true,
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if !validDatabaseDrivers[c.Database.Driver] {
		return fmt.Errorf("invalid database.driver %q: must be sqlite or postgres", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("jwt.expiration must be positive")
	}
	if !validProfileDrivers[c.Profile.Driver] {
		return fmt.Errorf("invalid profile.driver %q", c.Profile.Driver)
	}
	if c.Profile.Driver == ProfileS3 && c.Profile.S3.Bucket == "" {
		return fmt.Errorf("profile.s3.bucket is required for the s3 driver")
	}
	if c.Profile.Driver == ProfileRemote && c.Profile.Token == "" && c.Profile.TokenPath == "" {
		return fmt.Errorf("profile.token or profile.token_path is required for the remote driver")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative")
	}
	if c.News.MaxArticles < 0 {
		return fmt.Errorf("news.max_articles must be non-negative")
	}
	return nil
}

// PostgresDSN returns DSN when set, otherwise builds one from the
// individual connection fields.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}
