package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort       string
	AppEnv        string
	LogLevel      string
	PublicBaseURL string

	DBDriver string // mysql | postgres | sqlite

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	PostgresDSN string
	SQLitePath  string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	StorageDriver        string // local | s3
	StorageLocalDir      string
	StorageSigningSecret string
	S3Endpoint           string
	S3Region             string
	S3Bucket             string
	S3AccessKey          string
	S3SecretKey          string
	S3UseSSL             bool

	MaxUploadBytesActor int64
	MaxUploadBytesStaff int64

	TokenTTLDays          int
	SignedURLTTLActorSecs int
	SignedURLTTLStaffSecs int

	JWTSecret       string
	JWTIssuer       string
	AuthzPolicyFile string

	NotifyWebhookURL    string
	NotifyWebhookSecret string
	NotifyWorkers       int

	RateLimitTokenPerMinute int

	OTelEndpoint string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getbool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:       getenv("APP_PORT", "8080"),
		AppEnv:        getenv("APP_ENV", "development"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		DBDriver:  strings.ToLower(getenv("DB_DRIVER", "mysql")),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "leaseprotect"),
		MySQLUser: getenv("MYSQL_USER", "leaseprotect"),
		MySQLPass: getenv("MYSQL_PASS", "leaseprotect"),

		PostgresDSN: getenv("POSTGRES_DSN", ""),
		SQLitePath:  getenv("SQLITE_PATH", "leaseprotect.db"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		StorageDriver:        strings.ToLower(getenv("STORAGE_DRIVER", "local")),
		StorageLocalDir:      getenv("STORAGE_LOCAL_DIR", "./data/files"),
		StorageSigningSecret: getenv("STORAGE_SIGNING_SECRET", ""),
		S3Endpoint:           getenv("S3_ENDPOINT", ""),
		S3Region:             getenv("S3_REGION", "us-east-1"),
		S3Bucket:             getenv("S3_BUCKET", ""),
		S3AccessKey:          getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:          getenv("S3_SECRET_KEY", ""),
		S3UseSSL:             getbool("S3_USE_SSL", true),

		MaxUploadBytesActor: int64(getint("MAX_UPLOAD_BYTES_ACTOR", 10<<20)),
		MaxUploadBytesStaff: int64(getint("MAX_UPLOAD_BYTES_STAFF", 50<<20)),

		TokenTTLDays:          getint("TOKEN_TTL_DAYS", 30),
		SignedURLTTLActorSecs: getint("SIGNED_URL_TTL_ACTOR_SECONDS", 30),
		SignedURLTTLStaffSecs: getint("SIGNED_URL_TTL_STAFF_SECONDS", 300),

		JWTSecret:       getenv("JWT_SECRET", ""),
		JWTIssuer:       getenv("JWT_ISSUER", "leaseprotect"),
		AuthzPolicyFile: getenv("AUTHZ_POLICY_FILE", ""),

		NotifyWebhookURL:    getenv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: getenv("NOTIFY_WEBHOOK_SECRET", ""),
		NotifyWorkers:       getint("NOTIFY_WORKERS", 4),

		RateLimitTokenPerMinute: getint("RATE_LIMIT_TOKEN_PER_MINUTE", 60),

		OTelEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local":
		if c.StorageLocalDir == "" {
			return errors.New("missing STORAGE_LOCAL_DIR")
		}
		if c.StorageSigningSecret == "" {
			return errors.New("missing STORAGE_SIGNING_SECRET for local storage")
		}
	case "s3":
		if c.S3Endpoint == "" || c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return errors.New("missing S3 config (S3_ENDPOINT/BUCKET/ACCESS_KEY/SECRET_KEY)")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	if c.MaxUploadBytesActor <= 0 || c.MaxUploadBytesStaff < c.MaxUploadBytesActor {
		return errors.New("upload ceilings must be positive and staff >= actor")
	}
	if c.TokenTTLDays <= 0 || c.SignedURLTTLActorSecs <= 0 || c.SignedURLTTLStaffSecs <= 0 {
		return errors.New("TTLs must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) TokenTTL() time.Duration { return time.Duration(c.TokenTTLDays) * 24 * time.Hour }

func (c *Config) ActorURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLActorSecs) * time.Second
}

func (c *Config) StaffURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLStaffSecs) * time.Second
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the selected driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return c.PostgresDSN
	case "sqlite":
		return c.SQLitePath
	default:
		return c.MySQLDSN()
	}
}
