package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Store   StoreConfig
	Sheets  SheetsConfig
	Drive   DriveConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Access  AccessConfig
	Uploads UploadsConfig
	PubSub  PubSubConfig
	CORS    CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Sheets.PrivateKey = expandKey(cfg.Sheets.PrivateKey)
	cfg.Drive.PrivateKey = expandKey(cfg.Drive.PrivateKey)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.usesSQL() {
		cfg.DB.Driver = cfg.Store.Driver
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"MIYF_APP_ENV" default:"dev"`
	Port            string        `envconfig:"MIYF_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"MIYF_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"MIYF_LOG_WARN_STACK" default:"false"`
	ReadTimeout     time.Duration `envconfig:"MIYF_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"MIYF_HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"MIYF_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects the row-store backend.
type StoreConfig struct {
	Driver      string        `envconfig:"MIYF_STORE_DRIVER" default:"sheets"`
	AutoMigrate bool          `envconfig:"MIYF_AUTO_MIGRATE" default:"false"`
	IndexTTL    time.Duration `envconfig:"MIYF_STORE_INDEX_TTL" default:"10m"`
	LockTTL     time.Duration `envconfig:"MIYF_STORE_LOCK_TTL" default:"15s"`
	LockWait    time.Duration `envconfig:"MIYF_STORE_LOCK_WAIT" default:"5s"`
}

func (s StoreConfig) usesSQL() bool {
	return s.Driver == StoreDriverPostgres || s.Driver == StoreDriverSQLite
}

// SheetsConfig carries the spreadsheet credentials. The bare GOOGLE_* names are
// kept so existing deployments keep working.
type SheetsConfig struct {
	SpreadsheetID    string `envconfig:"GOOGLE_SHEET_ID"`
	TransactionSheet string `envconfig:"GOOGLE_SHEET_NAME" default:"Transaction"`
	ServiceEmail     string `envconfig:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	PrivateKey       string `envconfig:"GOOGLE_PRIVATE_KEY"`
	Endpoint         string `envconfig:"MIYF_SHEETS_ENDPOINT"`
}

// DriveConfig falls back to the sheets service account when unset.
type DriveConfig struct {
	ServiceEmail string `envconfig:"GOOGLE_DRIVE_SERVICE_ACCOUNT_EMAIL"`
	PrivateKey   string `envconfig:"GOOGLE_DRIVE_PRIVATE_KEY"`
	FolderID     string `envconfig:"GOOGLE_DRIVE_FOLDER_ID"`
	Endpoint     string `envconfig:"MIYF_DRIVE_ENDPOINT"`
}

// DriveCredentials returns the drive identity, inheriting the sheets account when
// no drive specific one is configured.
func (c Config) DriveCredentials() (email, key string) {
	if c.Drive.ServiceEmail != "" && c.Drive.PrivateKey != "" {
		return c.Drive.ServiceEmail, c.Drive.PrivateKey
	}
	return c.Sheets.ServiceEmail, c.Sheets.PrivateKey
}

type DBConfig struct {
	DSN    string `envconfig:"MIYF_DB_DSN"`
	Driver string `envconfig:"MIYF_DB_DRIVER"`

	Host     string `envconfig:"MIYF_DB_HOST"`
	Port     int    `envconfig:"MIYF_DB_PORT" default:"5432"`
	User     string `envconfig:"MIYF_DB_USER"`
	Password string `envconfig:"MIYF_DB_PASSWORD"`
	Name     string `envconfig:"MIYF_DB_NAME"`
	SSLMode  string `envconfig:"MIYF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MIYF_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"MIYF_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"MIYF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MIYF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL            string        `envconfig:"MIYF_REDIS_URL"`
	Address        string        `envconfig:"MIYF_REDIS_ADDR"`
	Password       string        `envconfig:"MIYF_REDIS_PASSWORD"`
	DB             int           `envconfig:"MIYF_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"MIYF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"MIYF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"MIYF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"MIYF_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout   time.Duration `envconfig:"MIYF_REDIS_WRITE_TIMEOUT" default:"3s"`
	IdempotencyTTL time.Duration `envconfig:"MIYF_IDEMPOTENCY_TTL" default:"24h"`
	KeyPrefix      string        `envconfig:"MIYF_REDIS_KEY_PREFIX" default:"miyf"`
}

// Enabled reports whether a redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"MIYF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MIYF_JWT_ISSUER" default:"miyf-books"`
	ExpirationMinutes int    `envconfig:"MIYF_JWT_EXPIRATION_MINUTES" default:"720"`
}

func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AccessConfig holds the super admin allow-list.
type AccessConfig struct {
	SuperAdmins []string `envconfig:"MIYF_SUPER_ADMIN_EMAILS"`
}

type UploadsConfig struct {
	MaxUploadMB int `envconfig:"MIYF_MAX_UPLOAD_MB" default:"10"`
}

func (u UploadsConfig) MaxBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(u.MaxUploadMB) << 20
}

type PubSubConfig struct {
	ProjectID         string        `envconfig:"MIYF_GCP_PROJECT_ID"`
	NotificationTopic string        `envconfig:"MIYF_PUBSUB_NOTIFICATION_TOPIC"`
	PublishTimeout    time.Duration `envconfig:"MIYF_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.NotificationTopic != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MIYF_CORS_ALLOWED_ORIGINS" default:"*"`
}

// StoreScope names the backing store in shared caches: the spreadsheet id for
// the sheets driver, the driver name otherwise.
func (c *Config) StoreScope() string {
	if c.Store.Driver == StoreDriverSheets {
		return c.Sheets.SpreadsheetID
	}
	return c.Store.Driver
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("%s is required", EnvJWTSecret)
	}
	switch c.Store.Driver {
	case StoreDriverSheets:
		missing := []string{}
		if c.Sheets.SpreadsheetID == "" {
			missing = append(missing, EnvSheetID)
		}
		if c.Sheets.ServiceEmail == "" {
			missing = append(missing, EnvServiceAccountEmail)
		}
		if c.Sheets.PrivateKey == "" {
			missing = append(missing, EnvPrivateKey)
		}
		if len(missing) > 0 {
			return fmt.Errorf("sheets store requires %s", strings.Join(missing, ", "))
		}
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("%s must be one of sheets, postgres, sqlite, memory (got %q)", EnvStoreDriver, c.Store.Driver)
	}
	if c.Drive.FolderID != "" {
		if email, key := c.DriveCredentials(); email == "" || key == "" {
			return fmt.Errorf("%s is set but no drive service account credentials are configured", EnvDriveFolderID)
		}
	}
	return nil
}

// expandKey turns literal "\n" sequences into newlines; PEM keys are commonly
// stored on a single line in env files.
func expandKey(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), `\n`, "\n")
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == StoreDriverSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
