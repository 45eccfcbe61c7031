package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    int
	PublicBaseURL string
	Database      DatabaseConfig
	Auth          AuthConfig
	Storage       StorageConfig
	MQ            MQConfig
	Upload        UploadConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// AuthConfig configures ID token verification and sessions.
type AuthConfig struct {
	// Backend selects the token verifier: "firebase" or "google".
	Backend string
	// ProjectID is the identity platform project; it is both the expected
	// token audience and the issuer suffix.
	ProjectID string
	// Provider is the single allowed sign-in provider, e.g. "github.com".
	Provider string
	// SessionTTLHours bounds how long a minted session stays valid.
	SessionTTLHours int
	// SessionCookie is the name of the session cookie.
	SessionCookie string
}

// StorageConfig selects and configures the upload object store.
type StorageConfig struct {
	// Backend is one of "local", "minio", "gcs".
	Backend string
	Local   LocalStorageConfig
	Minio   MinioConfig
	GCS     GCSConfig
}

type LocalStorageConfig struct {
	// Dir is the directory uploaded files are written to.
	Dir string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is the externally reachable prefix for stored objects.
	PublicBaseURL string
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

// MQConfig selects and configures the message broker for image events.
type MQConfig struct {
	// Backend is one of "none", "rabbitmq", "pubsub".
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type UploadConfig struct {
	// MaxBytes is the upload size ceiling.
	MaxBytes int64
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "pinterest"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "pinterest_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	authConfig := AuthConfig{
		Backend:         strings.ToLower(getEnv("AUTH_BACKEND", "firebase")),
		ProjectID:       getEnv("AUTH_PROJECT_ID", ""),
		Provider:        getEnv("AUTH_PROVIDER", "github.com"),
		SessionTTLHours: getEnvInt("SESSION_TTL_HOURS", 72),
		SessionCookie:   getEnv("SESSION_COOKIE", "fp_session"),
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		Local: LocalStorageConfig{
			Dir: getEnv("UPLOADS_DIR", "uploads"),
		},
		Minio: MinioConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "pinterest-uploads"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			PublicBaseURL:   getEnv("GCS_PUBLIC_BASE_URL", ""),
		},
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", "none")),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	serverPort := getEnvInt("SERVER_PORT", 8080)

	return Config{
		ServerPort:    serverPort,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", serverPort)),
		Database:      dbConfig,
		Auth:          authConfig,
		Storage:       storageConfig,
		MQ:            mqConfig,
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
