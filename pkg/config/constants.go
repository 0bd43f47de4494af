package config

const (
	EnvPrefix = "MIYF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverSheets   = "sheets"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"

	defaultSQLiteDSN = "miyf.db?_busy_timeout=5000"

	EnvAppEnv      = "MIYF_APP_ENV"
	EnvPort        = "MIYF_APP_PORT"
	EnvStoreDriver = "MIYF_STORE_DRIVER"

	EnvSheetID             = "GOOGLE_SHEET_ID"
	EnvSheetName           = "GOOGLE_SHEET_NAME"
	EnvServiceAccountEmail = "GOOGLE_SERVICE_ACCOUNT_EMAIL"
	EnvPrivateKey          = "GOOGLE_PRIVATE_KEY"
	EnvDriveAccountEmail   = "GOOGLE_DRIVE_SERVICE_ACCOUNT_EMAIL"
	EnvDrivePrivateKey     = "GOOGLE_DRIVE_PRIVATE_KEY"
	EnvDriveFolderID       = "GOOGLE_DRIVE_FOLDER_ID"

	EnvDBDSN  = "MIYF_DB_DSN"
	EnvDBHost = "MIYF_DB_HOST"
	EnvDBUser = "MIYF_DB_USER"
	EnvDBName = "MIYF_DB_NAME"

	EnvRedisURL    = "MIYF_REDIS_URL"
	EnvJWTSecret   = "MIYF_JWT_SECRET"
	EnvSuperAdmins = "MIYF_SUPER_ADMIN_EMAILS"
	EnvMaxUploadMB = "MIYF_MAX_UPLOAD_MB"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
