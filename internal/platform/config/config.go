package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort       string
	JWTKey        []byte
	JWTExp        time.Duration
	JWTRefreshExp time.Duration

	LogLevel  string
	LogFormat string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeQueueName      string
	JudgePoolSize       int
	JudgeTimeoutSeconds int
	EngineURL           string
	EngineTimeoutMs     int

	MaxCodeBytes           int
	DefaultTimeLimitMs     int
	DefaultMemoryLimitKb   int
	DefaultBattleDuration  int
	DefaultMaxParticipants int
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		JWTRefreshExp: time.Duration(getEnvAsInt("JWT_REFRESH_EXPIRATION_HOURS", 168)) * time.Hour,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "codebattle_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeQueueName:      getEnv("JUDGE_QUEUE_NAME", "judge_tasks_queue"),
		JudgePoolSize:       getEnvAsInt("JUDGE_POOL_SIZE", 4),
		JudgeTimeoutSeconds: getEnvAsInt("JUDGE_TIMEOUT_SECONDS", 120),
		EngineURL:           getEnv("ENGINE_URL", "http://localhost:9000/execute"),
		EngineTimeoutMs:     getEnvAsInt("ENGINE_TIMEOUT_MS", 30000),

		MaxCodeBytes:           getEnvAsInt("MAX_CODE_BYTES", 65536),
		DefaultTimeLimitMs:     getEnvAsInt("DEFAULT_TIME_LIMIT_MS", 5000),
		DefaultMemoryLimitKb:   getEnvAsInt("DEFAULT_MEMORY_LIMIT_KB", 262144),
		DefaultBattleDuration:  getEnvAsInt("DEFAULT_BATTLE_DURATION_SECONDS", 1800),
		DefaultMaxParticipants: getEnvAsInt("DEFAULT_MAX_PARTICIPANTS", 2),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
