package config

import "time"

// Config is the top-level configuration shared by the server and newsctl.
type Config struct {
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	JWT      JWTConfig      `yaml:"jwt" koanf:"jwt"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	News     NewsConfig     `yaml:"news" koanf:"news"`
	Cache    CacheConfig    `yaml:"cache" koanf:"cache"`
	Profile  ProfileConfig  `yaml:"profile" koanf:"profile"`
	Client   ClientConfig   `yaml:"client" koanf:"client"`
}

type ServerConfig struct {
	Address         string        `yaml:"address" koanf:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins" koanf:"allow_origins"`
	Gzip            bool          `yaml:"gzip" koanf:"gzip"`
}

// DatabaseConfig selects the server database. Driver is "sqlite" (Path) or
// "postgres" (DSN, or the Host/Port/... fields when DSN is empty).
type DatabaseConfig struct {
	Driver   string `yaml:"driver" koanf:"driver"`
	Path     string `yaml:"path" koanf:"path"`
	DSN      string `yaml:"dsn" koanf:"dsn"`
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	User     string `yaml:"user" koanf:"user"`
	Password string `yaml:"password" koanf:"password"`
	Name     string `yaml:"name" koanf:"name"`
	SSLMode  string `yaml:"ssl_mode" koanf:"ssl_mode"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret" koanf:"secret"`
	Expiration time.Duration `yaml:"expiration" koanf:"expiration"`
}

type LogConfig struct {
	Level       string `yaml:"level" koanf:"level"`
	Development bool   `yaml:"development" koanf:"development"`
}

type NewsConfig struct {
	Feeds           []string      `yaml:"feeds" koanf:"feeds"`
	OPML            string        `yaml:"opml" koanf:"opml"`
	RefreshInterval time.Duration `yaml:"refresh_interval" koanf:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" koanf:"fetch_timeout"`
	MaxArticles     int           `yaml:"max_articles" koanf:"max_articles"`
}

type CacheConfig struct {
	TTL  time.Duration `yaml:"ttl" koanf:"ttl"`
	Size int           `yaml:"size" koanf:"size"`
}

// ProfileConfig selects where newsctl keeps the visitor identity and record
// sets (the browser local storage equivalent).
type ProfileConfig struct {
	Driver    string   `yaml:"driver" koanf:"driver"`
	Path      string   `yaml:"path" koanf:"path"`
	DSN       string   `yaml:"dsn" koanf:"dsn"`
	Namespace string   `yaml:"namespace" koanf:"namespace"`
	S3        S3Config `yaml:"s3" koanf:"s3"`
	Token     string   `yaml:"token" koanf:"token"`
	// TokenPath keeps the visitor token issued for the remote driver when
	// Token is empty.
	TokenPath string   `yaml:"token_path" koanf:"token_path"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" koanf:"bucket"`
	Region    string `yaml:"region" koanf:"region"`
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	Prefix    string `yaml:"prefix" koanf:"prefix"`
	PathStyle bool   `yaml:"path_style" koanf:"path_style"`
}

type ClientConfig struct {
	BaseURL string        `yaml:"base_url" koanf:"base_url"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}
