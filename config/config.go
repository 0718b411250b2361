package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Backends and strategies accepted by the configuration.
const (
	StoreSQL       = "sql"
	StoreFirestore = "firestore"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	UploadLocal  = "local"
	UploadBucket = "bucket"

	RoleAllowList = "allowlist"
	RoleProfile   = "profile"
	RoleClaims    = "claims"
)

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"`
	CORSOrigins []string `yaml:"cors_origins"`
	CacheSize   int      `yaml:"cache_size"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type FirebaseConfig struct {
	CredentialsJSON string `yaml:"credentials_json"`
	ProjectID       string `yaml:"project_id"`
	StorageBucket   string `yaml:"storage_bucket"`
}

type UploadConfig struct {
	Backend      string        `yaml:"backend"`
	Root         string        `yaml:"root"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
	MaxBytes     int64         `yaml:"max_bytes"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SessionSecret string        `yaml:"session_secret"`
	RoleStrategy  string        `yaml:"role_strategy"`
	AdminIDs      []string      `yaml:"admin_ids"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type BackupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	Schedule  string        `yaml:"schedule"`
	Retention time.Duration `yaml:"retention"`
}

// AppConfig is the full runtime configuration.
type AppConfig struct {
	Server              ServerConfig   `yaml:"server"`
	StoreBackend        string         `yaml:"store_backend"`
	Database            DatabaseConfig `yaml:"database"`
	Firebase            FirebaseConfig `yaml:"firebase"`
	Upload              UploadConfig   `yaml:"upload"`
	Auth                AuthConfig     `yaml:"auth"`
	Logger              LoggerConfig   `yaml:"logger"`
	Backup              BackupConfig   `yaml:"backup"`
	DefaultAllowSignups bool           `yaml:"default_allow_signups"`

	// Warnings collected while loading, logged once the logger exists.
	Warnings []string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        "8080",
			Mode:        "debug",
			CORSOrigins: []string{"*"},
			CacheSize:   256,
		},
		StoreBackend: StoreSQL,
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "storefront.db",
			Port:            "5432",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Upload: UploadConfig{
			Backend:      UploadLocal,
			Root:         "uploads",
			SignedURLTTL: 10 * 365 * 24 * time.Hour,
			MaxBytes:     10 << 20,
		},
		Auth: AuthConfig{
			TokenTTL:     24 * time.Hour,
			RoleStrategy: RoleProfile,
			PollInterval: 15 * time.Second,
		},
		Logger: LoggerConfig{
			Mode:     "development",
			Filename: "logs/storefront.log",
		},
		Backup: BackupConfig{
			Dir:       "backup/uploads",
			Schedule:  "0 2 * * *",
			Retention: 4 * 24 * time.Hour,
		},
		DefaultAllowSignups: true,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (a local .env file is honoured).
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	applyEnv(cfg)
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Mode = getEnv("GIN_MODE", cfg.Server.Mode)
	cfg.Server.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.CacheSize = getEnvInt("CACHE_SIZE", cfg.Server.CacheSize)

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", cfg.StoreBackend))

	db := &cfg.Database
	db.Driver = strings.ToLower(getEnv("DB_DRIVER", db.Driver))
	db.Path = getEnv("DB_PATH", db.Path)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnv("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", db.ConnMaxLifetime)

	fb := &cfg.Firebase
	fb.CredentialsJSON = getEnv("FIREBASE_CREDENTIALS_JSON", fb.CredentialsJSON)
	fb.ProjectID = getEnv("FIREBASE_PROJECT_ID", fb.ProjectID)
	fb.StorageBucket = getEnv("STORAGE_BUCKET", fb.StorageBucket)

	up := &cfg.Upload
	up.Backend = strings.ToLower(getEnv("UPLOAD_BACKEND", up.Backend))
	up.Root = getEnv("UPLOAD_ROOT", up.Root)
	up.SignedURLTTL = getEnvDuration("SIGNED_URL_TTL", up.SignedURLTTL)
	up.MaxBytes = cast.ToInt64(getEnv("UPLOAD_MAX_BYTES", cast.ToString(up.MaxBytes)))

	au := &cfg.Auth
	au.JWTSecret = getEnv("JWT_SECRET", au.JWTSecret)
	au.TokenTTL = getEnvDuration("TOKEN_TTL", au.TokenTTL)
	au.SessionSecret = getEnv("SESSION_SECRET", au.SessionSecret)
	au.RoleStrategy = strings.ToLower(getEnv("ROLE_STRATEGY", au.RoleStrategy))
	au.AdminIDs = getEnvList("ADMIN_IDS", au.AdminIDs)
	au.PollInterval = getEnvDuration("ROLE_POLL_INTERVAL", au.PollInterval)

	cfg.Logger.Mode = getEnv("LOG_MODE", cfg.Logger.Mode)
	cfg.Logger.Filename = getEnv("LOG_FILE", cfg.Logger.Filename)
	cfg.Logger.FileEnable = getEnvBool("LOG_FILE_ENABLE", cfg.Logger.FileEnable)

	cfg.Backup.Enabled = getEnvBool("BACKUP_ENABLED", cfg.Backup.Enabled)
	cfg.Backup.Dir = getEnv("BACKUP_DIR", cfg.Backup.Dir)
	cfg.Backup.Schedule = getEnv("BACKUP_SCHEDULE", cfg.Backup.Schedule)
	cfg.Backup.Retention = getEnvDuration("BACKUP_RETENTION", cfg.Backup.Retention)

	cfg.DefaultAllowSignups = getEnvBool("DEFAULT_ALLOW_SIGNUPS", cfg.DefaultAllowSignups)
}

// finalize validates the combination of options and fills generated secrets.
func (c *AppConfig) finalize() error {
	switch c.StoreBackend {
	case StoreSQL:
		switch c.Database.Driver {
		case DriverSQLite:
		case DriverPostgres:
			if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
				return errors.New("postgres requires DB_HOST, DB_USER and DB_NAME")
			}
		default:
			return errors.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
		}
	case StoreFirestore:
		if c.Firebase.CredentialsJSON == "" {
			return errors.New("firestore backend requires FIREBASE_CREDENTIALS_JSON")
		}
	default:
		return errors.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.Upload.Backend {
	case UploadLocal:
		if c.Upload.Root == "" {
			return errors.New("local uploads require UPLOAD_ROOT")
		}
	case UploadBucket:
		if c.Firebase.CredentialsJSON == "" || c.Firebase.StorageBucket == "" {
			return errors.New("bucket uploads require FIREBASE_CREDENTIALS_JSON and STORAGE_BUCKET")
		}
	default:
		return errors.Errorf("unsupported UPLOAD_BACKEND %q", c.Upload.Backend)
	}

	switch c.Auth.RoleStrategy {
	case RoleAllowList:
		if len(c.Auth.AdminIDs) == 0 {
			c.Warnings = append(c.Warnings, "ROLE_STRATEGY=allowlist with empty ADMIN_IDS: nobody is admin")
		}
	case RoleProfile:
	case RoleClaims:
		if c.Firebase.CredentialsJSON == "" {
			return errors.New("ROLE_STRATEGY=claims requires FIREBASE_CREDENTIALS_JSON")
		}
	default:
		return errors.Errorf("unsupported ROLE_STRATEGY %q", c.Auth.RoleStrategy)
	}

	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = randomSecret()
		c.Warnings = append(c.Warnings, "JWT_SECRET not set: using a random secret, tokens will not survive a restart")
	}
	if c.Auth.SessionSecret == "" {
		c.Auth.SessionSecret = randomSecret()
		c.Warnings = append(c.Warnings, "SESSION_SECRET not set: using a random secret, carts will not survive a restart")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
