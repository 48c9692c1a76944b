package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	UploadsDir      string        `yaml:"uploads_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is mysql, postgres or sqlite.
	Driver string `yaml:"driver"`
	// DSN wins over the individual connection fields when set.
	DSN             string        `yaml:"dsn"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	LogLevel        string        `yaml:"log_level"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	Database   int           `yaml:"database"`
	ProductTTL time.Duration `yaml:"product_ttl"`
}

// JWTConfig selects RS256 when both key paths are set and HS256 with Secret otherwise.
type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	Issuer         string        `yaml:"issuer"`
	TTL            time.Duration `yaml:"ttl"`
}

func (j JWTConfig) UseRSA() bool {
	return j.PrivateKeyPath != "" && j.PublicKeyPath != ""
}

type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Redis      RedisConfig     `yaml:"redis"`
	JWT        JWTConfig       `yaml:"jwt"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	BcryptCost int             `yaml:"bcrypt_cost"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			Mode:            "release",
			UploadsDir:      "./uploads",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			Host:            "127.0.0.1",
			Port:            "3306",
			Database:        "electrotech",
			SSLMode:         "disable",
			LogLevel:        "warn",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "127.0.0.1:6379",
			ProductTTL: 10 * time.Minute,
		},
		JWT: JWTConfig{
			Issuer: "electrotech",
			TTL:    24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "electrotech",
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			Insecure:    true,
		},
	}
}

// LoadConfig reads .env (if present), then the YAML file on top of the defaults, then the
// environment overrides, and validates the result. A missing file at DefaultPath is not an error.
func LoadConfig(filename string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	config := Default()
	if filename == "" {
		filename = DefaultPath
	}

	file, err := os.Open(filename)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&config); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", filename, err)
		}
	case errors.Is(err, fs.ErrNotExist) && filename == DefaultPath:
		log.Printf("config: %s not found, using defaults and environment", filename)
	default:
		return Config{}, fmt.Errorf("open %s: %w", filename, err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("APP_ADDR", &c.Server.Addr)
	str("GIN_MODE", &c.Server.Mode)
	str("UPLOADS_DIR", &c.Server.UploadsDir)
	duration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("DB_USER", &c.Database.Username)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_HOST", &c.Database.Host)
	str("DB_PORT", &c.Database.Port)
	str("DB_NAME", &c.Database.Database)
	str("DB_SSLMODE", &c.Database.SSLMode)
	str("DB_LOG_LEVEL", &c.Database.LogLevel)

	boolean("REDIS_ENABLED", &c.Redis.Enabled)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.Database)
	duration("PRODUCT_CACHE_TTL", &c.Redis.ProductTTL)

	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_PRIVATE_KEY_PATH", &c.JWT.PrivateKeyPath)
	str("JWT_PUBLIC_KEY_PATH", &c.JWT.PublicKeyPath)
	str("JWT_ISSUER", &c.JWT.Issuer)
	duration("JWT_TTL", &c.JWT.TTL)

	str("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)
	str("TELEMETRY_EXPORTER", &c.Telemetry.Exporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	boolean("OTEL_EXPORTER_OTLP_INSECURE", &c.Telemetry.Insecure)

	integer("BCRYPT_COST", &c.BcryptCost)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "") {
			errs = append(errs, errors.New("database.dsn or database.host and database.database are required"))
		}
	case "sqlite":
		if c.Database.DSN == "" && c.Database.Database == "" {
			errs = append(errs, errors.New("database.dsn or database.database is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of mysql, postgres, sqlite", c.Database.Driver))
	}
	if _, err := parseLogLevel(c.Database.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}

	if c.JWT.UseRSA() {
		if c.JWT.Secret != "" {
			log.Println("config: jwt key pair configured, jwt.secret is ignored")
		}
	} else if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 bytes unless a key pair is configured"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt.ttl must be positive"))
	}

	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter %q is not one of none, stdout, otlp", c.Telemetry.Exporter))
	}

	return errors.Join(errs...)
}
