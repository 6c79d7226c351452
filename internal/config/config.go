package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	Limits    LimitsConfig
	HTTP      HTTPConfig
}

// DatabaseConfig содержит конфигурацию хранилища
type DatabaseConfig struct {
	Driver     string // postgres или sqlite
	DSN        string
	SQLitePath string
}

// TelegramConfig содержит конфигурацию Telegram бота
type TelegramConfig struct {
	Token       string
	Mode        string
	WebhookURL  string
	WebhookPort string
}

// SchedulerConfig содержит конфигурацию фоновых задач
type SchedulerConfig struct {
	DispatchTime       string // время рассылки, формат HH:MM
	SweepTime          string // время чистки, формат HH:MM
	RetentionDays      int
	SendTimeoutSeconds int
}

// LimitsConfig содержит границы валидации напоминаний
type LimitsConfig struct {
	MaxTextLength   int
	MinPriority     int
	MaxPriority     int
	MinDurationDays int
	MaxDurationDays int
}

// HTTPConfig содержит конфигурацию HTTP API
type HTTPConfig struct {
	Port string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     getEnvOrDefault("STORAGE_DRIVER", "postgres"),
			DSN:        getDSN(),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "sleepysmurf.db"),
		},
		Telegram: TelegramConfig{
			Token:       getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
			Mode:        getEnvOrDefault("TELEGRAM_BOT_MODE", "polling"),
			WebhookURL:  getEnvOrDefault("TELEGRAM_WEBHOOK_URL", ""),
			WebhookPort: getEnvOrDefault("TELEGRAM_WEBHOOK_PORT", "8080"),
		},
		Scheduler: SchedulerConfig{
			DispatchTime:       getEnvOrDefault("DISPATCH_TIME", "08:00"),
			SweepTime:          getEnvOrDefault("SWEEP_TIME", "00:00"),
			RetentionDays:      getEnvAsInt("RETENTION_DAYS", 30),
			SendTimeoutSeconds: getEnvAsInt("SEND_TIMEOUT_SECONDS", 10),
		},
		Limits: LimitsConfig{
			MaxTextLength:   getEnvAsInt("MAX_TEXT_LENGTH", 500),
			MinPriority:     getEnvAsInt("MIN_PRIORITY", 0),
			MaxPriority:     getEnvAsInt("MAX_PRIORITY", 5),
			MinDurationDays: getEnvAsInt("MIN_DURATION_DAYS", 1),
			MaxDurationDays: getEnvAsInt("MAX_DURATION_DAYS", 7),
		},
		HTTP: HTTPConfig{
			Port: getEnvOrDefault("HTTP_PORT", "25566"),
		},
	}
}

// getDSN формирует строку подключения к базе данных
func getDSN() string {
	// Сначала проверяем переменную окружения
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}

	// Если переменная не задана, формируем DSN из отдельных параметров
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "sleepysmurf_user")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "sleepysmurf_password")
	dbname := getEnvOrDefault("POSTGRES_DB", "sleepysmurf")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)
}

// getEnvOrDefault получает значение переменной окружения или возвращает значение по умолчанию
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
