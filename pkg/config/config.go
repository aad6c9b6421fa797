package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Sensor    SensorConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig configures the optional latest-sample store. An empty Addr
// disables it.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	LatestTTL time.Duration
}

// KafkaConfig configures the optional readings stream. Empty Brokers disable it.
type KafkaConfig struct {
	Brokers       []string
	TopicReadings string
}

// SensorConfig holds the bus address and reading-validation settings for the
// particulate-matter sensor.
type SensorConfig struct {
	Bus              string
	Address          uint16
	MaxRetries       int
	RetryDelay       time.Duration
	CacheTTL         time.Duration
	WarmupTime       time.Duration
	MaxConcentration int
	MaxParticleCount int
}

type SchedulerConfig struct {
	LockPath   string
	SettleTime time.Duration
}

type HTTPConfig struct {
	ListenAddr string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "aqi_user"),
			Password: getEnv("DB_PASSWORD", "aqi_pass"),
			DBName:   getEnv("DB_NAME", "aqi_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			LatestTTL: getEnvAsDuration("REDIS_LATEST_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "aqi.readings.raw"),
		},
		Sensor: SensorConfig{
			Bus:              getEnv("SENSOR_BUS", "1"),
			Address:          uint16(getEnvAsInt("SENSOR_ADDRESS", 0x19)),
			MaxRetries:       getEnvAsInt("SENSOR_MAX_RETRIES", 3),
			RetryDelay:       getEnvAsDuration("SENSOR_RETRY_DELAY", 100*time.Millisecond),
			CacheTTL:         getEnvAsDuration("SENSOR_CACHE_TTL", 500*time.Millisecond),
			WarmupTime:       getEnvAsDuration("SENSOR_WARMUP_TIME", 30*time.Second),
			MaxConcentration: getEnvAsInt("SENSOR_MAX_CONCENTRATION", 1000),
			MaxParticleCount: getEnvAsInt("SENSOR_MAX_PARTICLE_COUNT", 65535),
		},
		Scheduler: SchedulerConfig{
			LockPath:   getEnv("SCHEDULER_LOCK_PATH", "/tmp/pm25-scheduler.lock"),
			SettleTime: getEnvAsDuration("SCHEDULER_SETTLE_TIME", 30*time.Second),
		},
		HTTP: HTTPConfig{
			ListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
