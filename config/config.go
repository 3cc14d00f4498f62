// Package config loads the layered configuration
// (TOML file, then SHORTENER__SECTION__KEY environment overrides, then
// command-line flags) and validate it at startup, refusing to start on
// the validation conditions below. Wiring the validated Config into a running
// Server is config/wire.go's job; this file only produces and checks the
// struct.
package config

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shortenlabs/shortener/codegen"
)

// Duration is time.Duration that decodes from the TOML string form
// ("30s", "1h") — BurntSushi/toml has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std converts back to the stdlib type at the config boundary.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig is the [server] table.
type ServerConfig struct {
	Address               string   `toml:"address"`
	PublicURL             string   `toml:"public_url"`
	APIKey                string   `toml:"api_key"`
	TrustedPlatformHeader string   `toml:"trusted_platform_header"`
	JWTSecret             string   `toml:"jwt_secret"` // signs AdminSession bearer tokens; generated at boot if unset
	AdminTimeout          Duration `toml:"admin_timeout"`
	RedirectTimeout       Duration `toml:"redirect_timeout"`
	ShutdownTimeout       Duration `toml:"shutdown_timeout"`
	SessionTTL            Duration `toml:"session_ttl"`
}

// ShortenerConfig is the [shortener] table.
type ShortenerConfig struct {
	CodeLength  int    `toml:"code_length"`
	CodeCharset string `toml:"code_charset"`
}

// AdminConfig is the [admin] table. Password is the plaintext configured
// credential; it is bcrypt-hashed once at wiring time (config/wire.go) and
// never stored or logged in its plaintext form past that point.
type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// SQLiteConfig is [database.sqlite].
type SQLiteConfig struct {
	Path        string   `toml:"path"`
	MaxReaders  int      `toml:"max_readers"`
	BusyTimeout Duration `toml:"busy_timeout"`
}

// PostgresConfig is [database.postgres].
type PostgresConfig struct {
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

// MySQLConfig is [database.mysql].
type MySQLConfig struct {
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

// DatabaseConfig is the [database] table: Type selects which of the
// three sub-tables is live.
type DatabaseConfig struct {
	Type     string         `toml:"type"` // sqlite | postgres | mysql
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	MySQL    MySQLConfig    `toml:"mysql"`
}

// RedisConfig is [cache.redis].
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// CacheConfig is the [cache] table.
type CacheConfig struct {
	Enabled bool        `toml:"enabled"`
	Type    string      `toml:"type"`   // redis | none
	Expire  int         `toml:"expire"` // seconds
	Prefix  string      `toml:"prefix"`
	Redis   RedisConfig `toml:"redis"`
}

// GeoIPConfig is the [geoip] table.
type GeoIPConfig struct {
	Enabled     bool   `toml:"enabled"`
	Type        string `toml:"type"` // maxmind
	Path        string `toml:"path"`
	CachePolicy string `toml:"cache_policy"` // none | index | full
}

// Config is the fully layered configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Shortener ShortenerConfig `toml:"shortener"`
	Admin     AdminConfig     `toml:"admin"`
	Database  DatabaseConfig  `toml:"database"`
	Cache     CacheConfig     `toml:"cache"`
	GeoIP     GeoIPConfig     `toml:"geoip"`
}

// Default returns a Config with every field set to a runnable default —
// an embedded sqlite file, caching disabled, a 6-char alphanumeric code.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			PublicURL:       "http://localhost:8080",
			AdminTimeout:    Duration(30 * time.Second),
			RedirectTimeout: Duration(5 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			SessionTTL:      Duration(time.Hour),
		},
		Shortener: ShortenerConfig{CodeLength: 6, CodeCharset: codegen.DefaultAlphabet},
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "shortener.db", MaxReaders: 4, BusyTimeout: Duration(5 * time.Second)},
		},
		Cache: CacheConfig{Enabled: false, Type: "none", Expire: 3600, Prefix: "shortener:"},
		GeoIP: GeoIPConfig{Enabled: false, CachePolicy: "index"},
	}
}

// envPrefix is the SHORTENER__SECTION__KEY override convention.
const envPrefix = "SHORTENER"

// Load applies the first two layers: the TOML file (if path is
// non-empty; a path that cannot be read is an error), then environment
// overrides. The flag layer is applied separately by Flags.Apply.
// Validate is NOT called here — callers decide whether -validate-only
// should exit before or after wiring.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(reflect.ValueOf(&cfg).Elem(), []string{envPrefix})
	return cfg, nil
}

// applyEnvOverrides walks v's struct fields by their `toml` tag, looking
// up the corresponding SHORTENER__SECTION__KEY environment variable.
func applyEnvOverrides(v reflect.Value, path []string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("toml")
		if tag == "" {
			tag = field.Name
		}
		fv := v.Field(i)
		key := append(append([]string{}, path...), strings.ToUpper(tag))

		if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Duration(0)) {
			applyEnvOverrides(fv, key)
			continue
		}

		envName := strings.Join(key, "__")
		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		setFieldFromString(fv, raw)
	}
}

func setFieldFromString(fv reflect.Value, raw string) {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			fv.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == reflect.TypeOf(Duration(0)) || fv.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				fv.SetInt(int64(d))
			}
			return
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fv.SetInt(n)
		}
	}
}

// Flags is the command-line override layer: -config, -validate-only, and
// the per-section overrides needed to smoke-test a binary without a file.
type Flags struct {
	ConfigPath   string
	ValidateOnly bool
	Address      string
	APIKey       string
	AdminUser    string
	AdminPass    string
	CodeLength   int
}

// ParseFlags registers and parses the CLI layer against fs (pass
// flag.CommandLine in main, a fresh flag.FlagSet in tests).
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.ConfigPath, "config", "", "path to the TOML config file")
	fs.BoolVar(&f.ValidateOnly, "validate-only", false, "load and validate config, then exit")
	fs.StringVar(&f.Address, "addr", "", "override server.address")
	fs.StringVar(&f.APIKey, "api-key", "", "override server.api_key")
	fs.StringVar(&f.AdminUser, "admin-username", "", "override admin.username")
	fs.StringVar(&f.AdminPass, "admin-password", "", "override admin.password")
	fs.IntVar(&f.CodeLength, "code-length", 0, "override shortener.code_length")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Apply layers f onto cfg (the third, highest-precedence layer).
func (f Flags) Apply(cfg Config) Config {
	if f.Address != "" {
		cfg.Server.Address = f.Address
	}
	if f.APIKey != "" {
		cfg.Server.APIKey = f.APIKey
	}
	if f.AdminUser != "" {
		cfg.Admin.Username = f.AdminUser
	}
	if f.AdminPass != "" {
		cfg.Admin.Password = f.AdminPass
	}
	if f.CodeLength != 0 {
		cfg.Shortener.CodeLength = f.CodeLength
	}
	return cfg
}

// Validate implements the startup checks: refuse to start on a
// missing admin credential, missing API key, code length outside [4,16],
// or an unrecognized database/cache backend type.
func (c Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key must be set")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin.username and admin.password must both be set")
	}
	if c.Shortener.CodeLength < codegen.MinLength || c.Shortener.CodeLength > codegen.MaxLength {
		return fmt.Errorf("shortener.code_length must be between %d and %d, got %d",
			codegen.MinLength, codegen.MaxLength, c.Shortener.CodeLength)
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.type must be one of sqlite|postgres|mysql, got %q", c.Database.Type)
	}
	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "redis":
		default:
			return fmt.Errorf("cache.type must be redis when cache.enabled is true, got %q", c.Cache.Type)
		}
	}
	return nil
}
