package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListen         = "127.0.0.1:5000"
	DefaultDBDriver       = "sqlite"
	DefaultDBFileName     = ".towermap.db"
	DefaultImagesDirName  = "images"
	DefaultLogLevel       = "info"
	DefaultMySQLPort      = 3306
	DefaultSessionTTL     = 24 * time.Hour
	DefaultMaxUploadBytes = int64(20 * 1024 * 1024)

	configFileName           = ".towermap.toml"
	configDirEnvKey          = "TOWERMAP_CONFIG_DIR"
	trustProjectConfigEnvKey = "TOWERMAP_TRUST_PROJECT_CONFIG"
)

// DBConfig selects the marker database.
type DBConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Name         string `toml:"name"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// ImagesConfig locates uploaded marker images.
type ImagesConfig struct {
	Dir            string `toml:"dir"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// AuthConfig configures ID-token verification and sessions.
type AuthConfig struct {
	ProjectID    string `toml:"project_id"`
	JWKSURL      string `toml:"jwks_url"`
	APITokenHash string `toml:"api_token_hash"`
	SessionTTL   string `toml:"session_ttl"`
}

// Config defines runtime configuration for towermap.
type Config struct {
	Listen                   string       `toml:"listen"`
	LogLevel                 string       `toml:"log_level"`
	DB                       DBConfig     `toml:"db"`
	Images                   ImagesConfig `toml:"images"`
	Auth                     AuthConfig   `toml:"auth"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		Listen:   DefaultListen,
		LogLevel: DefaultLogLevel,
		DB: DBConfig{
			Driver: DefaultDBDriver,
			Port:   DefaultMySQLPort,
		},
		Images: ImagesConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Auth: AuthConfig{
			SessionTTL: DefaultSessionTTL.String(),
		},
	}
}

// SessionTTLDuration parses auth.session_ttl, falling back to the default.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Auth.SessionTTL))
	if err != nil || d <= 0 {
		return DefaultSessionTTL
	}
	return d
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindDuration
)

var allowedKeys = []string{
	"listen",
	"log_level",
	"db.driver",
	"db.path",
	"db.host",
	"db.port",
	"db.user",
	"db.password",
	"db.name",
	"db.max_open_conns",
	"images.dir",
	"images.max_upload_bytes",
	"auth.project_id",
	"auth.jwks_url",
	"auth.api_token_hash",
	"auth.session_ttl",
}

var keyKinds = map[string]keyKind{
	"db.port":                 kindInt,
	"db.max_open_conns":       kindInt,
	"images.max_upload_bytes": kindInt,
	"auth.session_ttl":        kindDuration,
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "listen":
		return c.Listen, nil
	case "log_level":
		return c.LogLevel, nil
	case "db.driver":
		return c.DB.Driver, nil
	case "db.path":
		return c.DB.Path, nil
	case "db.host":
		return c.DB.Host, nil
	case "db.port":
		return strconv.Itoa(c.DB.Port), nil
	case "db.user":
		return c.DB.User, nil
	case "db.password":
		if c.DB.Password == "" {
			return "", nil
		}
		return "<redacted>", nil
	case "db.name":
		return c.DB.Name, nil
	case "db.max_open_conns":
		return strconv.Itoa(c.DB.MaxOpenConns), nil
	case "images.dir":
		return c.Images.Dir, nil
	case "images.max_upload_bytes":
		return strconv.FormatInt(c.Images.MaxUploadBytes, 10), nil
	case "auth.project_id":
		return c.Auth.ProjectID, nil
	case "auth.jwks_url":
		return c.Auth.JWKSURL, nil
	case "auth.api_token_hash":
		return c.Auth.APITokenHash, nil
	case "auth.session_ttl":
		return c.Auth.SessionTTL, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalize()

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	stringEnv := map[string]*string{
		"TOWERMAP_LISTEN":         &cfg.Listen,
		"TOWERMAP_DB_DRIVER":      &cfg.DB.Driver,
		"TOWERMAP_DB_PATH":        &cfg.DB.Path,
		"TOWERMAP_DB_HOST":        &cfg.DB.Host,
		"TOWERMAP_DB_USER":        &cfg.DB.User,
		"TOWERMAP_DB_PASSWORD":    &cfg.DB.Password,
		"TOWERMAP_DB_NAME":        &cfg.DB.Name,
		"TOWERMAP_IMAGES_DIR":     &cfg.Images.Dir,
		"TOWERMAP_IDP_PROJECT_ID": &cfg.Auth.ProjectID,
		"TOWERMAP_IDP_JWKS_URL":   &cfg.Auth.JWKSURL,
		"TOWERMAP_API_TOKEN_HASH": &cfg.Auth.APITokenHash,
	}
	for key, dst := range stringEnv {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("TOWERMAP_DB_PORT")); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			cfg.DB.Port = port
		}
	}
}

func (c *Config) normalize() {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	if c.DB.Driver == "" {
		c.DB.Driver = DefaultDBDriver
	}
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DB.Port <= 0 {
		c.DB.Port = DefaultMySQLPort
	}
	if c.Images.MaxUploadBytes <= 0 {
		c.Images.MaxUploadBytes = DefaultMaxUploadBytes
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	if c.DB.Path == "" {
		c.DB.Path = filepath.Join(cwd, DefaultDBFileName)
	}
	if c.Images.Dir == "" {
		c.Images.Dir = filepath.Join(cwd, DefaultImagesDirName)
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch keyKinds[key] {
	case kindInt:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case kindDuration:
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 12h", key)
		}
		return parsed.String(), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
