package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// DefaultAdminEmail é o administrador usado quando ADMIN_EMAILS não é informado.
const DefaultAdminEmail = "admin@prefsb.com"

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port             int
	DBDSN            string
	DBMigrate        bool
	RedisURL         string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTSecret        string
	AllowOrigins     []string
	AdminEmails      []string
	LogLevel         string
	Location         *time.Location
	RateLimitPublic  RateLimitConfig
	RateLimitAuth    RateLimitConfig
	WebAuthnRPID     string
	WebAuthnRPOrigin string
	WebAuthnRPName   string
	Identity         IdentityConfig
	Storage          StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// IdentityConfig define o provedor de contas e suas credenciais.
type IdentityConfig struct {
	Provider                string
	FirebaseCredentialsPath string
	FirebaseAPIKey          string
	LoginMaxAttempts        int
	LoginLockWindow         time.Duration
	PasswordResetTTL        time.Duration
	ResetWebhookURL         string
	ResetLinkBase           string
}

// StorageConfig define o destino das fotos das demandas.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
	S3PathStyle bool
	PresignTTL  time.Duration
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}
	cfg.DBMigrate = parseBoolEnv("DB_MIGRATE", true)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	cfg.AdminEmails = nil
	for _, email := range splitList(getEnv("ADMIN_EMAILS", DefaultAdminEmail)) {
		cfg.AdminEmails = append(cfg.AdminEmails, strings.ToLower(email))
	}
	if len(cfg.AdminEmails) == 0 {
		return nil, errors.New("ADMIN_EMAILS deve conter ao menos um e-mail")
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info")))

	// Relatórios mensais agrupam pelo fuso da prefeitura, não pelo do servidor.
	loc, err := time.LoadLocation(strings.TrimSpace(getEnv("APP_TIMEZONE", "America/Sao_Paulo")))
	if err != nil {
		return nil, errors.New("APP_TIMEZONE inválido")
	}
	cfg.Location = loc

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.WebAuthnRPID = strings.TrimSpace(getEnv("WEBAUTHN_RP_ID", "localhost"))
	if cfg.WebAuthnRPID == "" {
		cfg.WebAuthnRPID = "localhost"
	}
	cfg.WebAuthnRPOrigin = strings.TrimSpace(getEnv("WEBAUTHN_RP_ORIGIN", "http://localhost:8081"))
	if cfg.WebAuthnRPOrigin == "" {
		cfg.WebAuthnRPOrigin = "http://localhost:8081"
	}
	cfg.WebAuthnRPName = strings.TrimSpace(getEnv("WEBAUTHN_RP_NAME", "Gestão de Demandas"))
	if cfg.WebAuthnRPName == "" {
		cfg.WebAuthnRPName = "Gestão de Demandas"
	}

	identity, err := loadIdentity()
	if err != nil {
		return nil, err
	}
	cfg.Identity = identity

	storage, err := loadStorage()
	if err != nil {
		return nil, err
	}
	cfg.Storage = storage

	return cfg, nil
}

func loadIdentity() (IdentityConfig, error) {
	idc := IdentityConfig{
		Provider:                strings.ToLower(strings.TrimSpace(getEnv("IDENTITY_PROVIDER", "local"))),
		FirebaseCredentialsPath: strings.TrimSpace(getEnv("FIREBASE_CREDENTIALS_PATH", "")),
		FirebaseAPIKey:          strings.TrimSpace(getEnv("FIREBASE_API_KEY", "")),
		ResetWebhookURL:         strings.TrimSpace(getEnv("RESET_WEBHOOK_URL", "")),
		ResetLinkBase:           strings.TrimSpace(getEnv("RESET_LINK_BASE", "http://localhost:5173/redefinir-senha")),
	}

	switch idc.Provider {
	case "local":
	case "firebase":
		if idc.FirebaseCredentialsPath == "" {
			return idc, errors.New("FIREBASE_CREDENTIALS_PATH obrigatório")
		}
		if idc.FirebaseAPIKey == "" {
			return idc, errors.New("FIREBASE_API_KEY obrigatório")
		}
	default:
		return idc, errors.New("IDENTITY_PROVIDER inválido")
	}

	attempts, err := strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5"))
	if err != nil || attempts <= 0 {
		return idc, errors.New("LOGIN_MAX_ATTEMPTS inválido")
	}
	idc.LoginMaxAttempts = attempts

	if idc.LoginLockWindow, err = parseDurationEnv("LOGIN_LOCK_WINDOW", 15*time.Minute); err != nil {
		return idc, err
	}
	if idc.PasswordResetTTL, err = parseDurationEnv("PASSWORD_RESET_TTL", time.Hour); err != nil {
		return idc, err
	}
	return idc, nil
}

func loadStorage() (StorageConfig, error) {
	sc := StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PublicURL: strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
		S3PathStyle: parseBoolEnv("S3_PATH_STYLE", true),
	}

	ttl, err := parseDurationEnv("S3_PRESIGN_TTL", 7*24*time.Hour)
	if err != nil {
		return sc, err
	}
	sc.PresignTTL = ttl

	switch sc.Provider {
	case "", "noop":
	case "s3", "r2", "minio":
		if sc.S3Bucket == "" {
			return sc, errors.New("S3_BUCKET obrigatório")
		}
	default:
		return sc, errors.New("STORAGE_PROVIDER inválido")
	}
	return sc, nil
}

// IsAdminEmail indica se o e-mail pertence à lista de administradores.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
