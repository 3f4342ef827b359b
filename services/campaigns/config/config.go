package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Firebase  FirebaseConfig
	Admin     AdminConfig
	JWT       JWTConfig
	Razorpay  RazorpayConfig
	UPI       UPIConfig
	Story     StoryConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Listing   ListingConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port    string
	Env     string
	BaseURL string // public origin used in receipts and absolute links

	AllowedOrigins []string // CORS origins for the JSON API; "*" allows any
}

type DBConfig struct {
	Backend string // "sqlite" or "firestore"
	Path    string
}

type FirebaseConfig struct {
	ProjectID         string
	CredentialsPath   string
	FirestoreDatabase string
}

type AdminConfig struct {
	Username     string
	PasswordHash string   // bcrypt hash
	Password     string   // plaintext, development only; hashed at startup
	Emails       []string // Firebase accounts allowed into the admin panel
	TokenTTLHrs  int
}

type JWTConfig struct {
	SigningKey string // Secret key for JWT signing
	Issuer     string // JWT issuer claim
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

type UPIConfig struct {
	MerchantID   string // general-fund payee address
	MerchantName string
}

type StoryConfig struct {
	Provider    string // "template" or "openai"
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
	TimeoutSecs int
	MaxRetries  int
}

type StorageConfig struct {
	Backend   string // "local" or "s3"
	UploadDir string
	S3Bucket  string
	AWSRegion string
}

type RedisConfig struct {
	URL string // empty disables Redis-backed rate limiting
}

type KafkaConfig struct {
	Brokers []string // empty disables receipt publishing
}

type ListingConfig struct {
	PageSize int
}

type RateLimitConfig struct {
	DonationsPerHour   int
	SubmissionsPerHour int
}

// Load returns application configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			Env:     getEnv("ENV", "development"),
			BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		DB: DBConfig{
			Backend: getEnv("STORE_BACKEND", "sqlite"),
			Path:    getEnv("DB_PATH", "carefund.db"),
		},
		Firebase: FirebaseConfig{
			ProjectID:         getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath:   getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			FirestoreDatabase: getEnv("FIRESTORE_DATABASE", "(default)"),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			Password:     getEnv("ADMIN_PASSWORD", ""),
			Emails:       getEnvList("ADMIN_EMAILS"),
			TokenTTLHrs:  getEnvInt("ADMIN_TOKEN_TTL_HOURS", 12),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
			Issuer:     getEnv("JWT_ISSUER", "carefund"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		},
		UPI: UPIConfig{
			MerchantID:   getEnv("MERCHANT_UPI_ID", "communitycare@upi"),
			MerchantName: getEnv("MERCHANT_NAME", "Community Care Fund"),
		},
		Story: StoryConfig{
			Provider:    getEnv("STORY_PROVIDER", "template"),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			TimeoutSecs: getEnvInt("STORY_TIMEOUT_SECONDS", 20),
			MaxRetries:  getEnvInt("STORY_MAX_RETRIES", 2),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			S3Bucket:  getEnv("S3_BUCKET", ""),
			AWSRegion: getEnv("AWS_REGION", "ap-south-1"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
		},
		Listing: ListingConfig{
			PageSize: getEnvInt("LISTING_PAGE_SIZE", 6),
		},
		RateLimit: RateLimitConfig{
			DonationsPerHour:   getEnvInt("RATE_LIMIT_DONATIONS_PER_HOUR", 10),
			SubmissionsPerHour: getEnvInt("RATE_LIMIT_SUBMISSIONS_PER_HOUR", 5),
		},
	}
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
