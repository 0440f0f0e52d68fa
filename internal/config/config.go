package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Gateway names accepted in SURVEY_GATEWAY.
const (
	GatewayMemory   = "memory"
	GatewaySheets   = "sheets"
	GatewayXLSX     = "xlsx"
	GatewaySQLite   = "sqlite"
	GatewayPostgres = "postgres"
	GatewayOxiDB    = "oxidb"
)

type Config struct {
	HTTPAddr    string
	CatalogPath string
	Step        int
	Timezone    string

	Gateway string

	SheetsSpreadsheetID   string
	SheetsRange           string
	GoogleCredentials     string
	GoogleCredentialsFile string

	XLSXPath    string
	SQLitePath  string
	DatabaseURL string

	OxiDBHost string
	OxiDBPort int
	PoolSize  int

	RedisURL   string
	SessionTTL time.Duration

	JWTSecret     string
	AdminEmail    string
	AdminPassHash string
	CSRFKey       string
	SecureCookies bool
	CORSOrigin    string

	GELFAddr string
}

func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("SURVEY_ADDR", ":8080"),
		CatalogPath: getEnv("SURVEY_CATALOG", ""),
		Step:        getEnvInt("SURVEY_STEP", 0),
		Timezone:    getEnv("SURVEY_TZ", "Europe/Athens"),

		Gateway: getEnv("SURVEY_GATEWAY", GatewayMemory),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsRange:           getEnv("SHEETS_RANGE", "Sheet1"),
		GoogleCredentials:     getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		XLSXPath:    getEnv("XLSX_PATH", "cvf_responses.xlsx"),
		SQLitePath:  getEnv("SQLITE_PATH", "cvf_responses.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OxiDBHost: getEnv("OXIDB_HOST", "127.0.0.1"),
		OxiDBPort: getEnvInt("OXIDB_PORT", 4444),
		PoolSize:  getEnvInt("OXIDB_POOL_SIZE", 3),

		RedisURL:   getEnv("REDIS_URL", ""),
		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_SECONDS", 86400)) * time.Second,

		JWTSecret:     getEnv("SURVEY_JWT_SECRET", "cvf-survey-dev-secret-change-me"),
		AdminEmail:    getEnv("SURVEY_ADMIN_EMAIL", "admin@cvf.local"),
		AdminPassHash: getEnv("SURVEY_ADMIN_PASS_HASH", ""),
		CSRFKey:       getEnv("SURVEY_CSRF_KEY", ""),
		SecureCookies: getEnvBool("SURVEY_SECURE_COOKIES", false),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),

		GELFAddr: getEnv("GELF_ADDR", ""),
	}
}

// OxiDBAddr joins host and port.
func (c *Config) OxiDBAddr() string {
	return net.JoinHostPort(c.OxiDBHost, strconv.Itoa(c.OxiDBPort))
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: SURVEY_TZ: %w", err)
	}
	return loc, nil
}

// Validate checks the settings the selected gateway depends on.
func (c *Config) Validate() error {
	switch c.Gateway {
	case GatewayMemory, GatewayXLSX, GatewaySQLite, GatewayOxiDB:
	case GatewaySheets:
		if c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("config: SHEETS_SPREADSHEET_ID is required for the sheets gateway")
		}
		if c.GoogleCredentials == "" && c.GoogleCredentialsFile == "" {
			return fmt.Errorf("config: GOOGLE_CREDENTIALS or GOOGLE_CREDENTIALS_FILE is required for the sheets gateway")
		}
	case GatewayPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres gateway")
		}
	default:
		return fmt.Errorf("config: unknown SURVEY_GATEWAY %q", c.Gateway)
	}
	if c.Step < 0 {
		return fmt.Errorf("config: SURVEY_STEP must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL_SECONDS must be positive")
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
