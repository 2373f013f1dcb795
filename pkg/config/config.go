package config

import (
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Avatar   AvatarConfig   `yaml:"avatar"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	JWTSecret string `yaml:"jwt_secret"`
	LogLevel  string `yaml:"log_level"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Network string `yaml:"network"`
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI            string        `yaml:"uri"`
	DBName         string        `yaml:"db_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// AvatarConfig 头像存储配置
type AvatarConfig struct {
	Dir     string `yaml:"dir"`      // 图片落盘目录
	BaseURL string `yaml:"base_url"` // 对外访问前缀
}

// LoadConfig 从环境变量加载配置
func LoadConfig(serviceName string) *Config {
	httpPort := getEnvOrDefault("HTTP_PORT", "9200")

	return &Config{
		App: AppConfig{
			Name:      serviceName,
			Version:   getEnvOrDefault("APP_VERSION", "1.0.0"),
			JWTSecret: getEnvOrDefault("JWT_SECRET", "gochat-secret"),
			LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{
				Network: "tcp",
				Addr:    ":" + httpPort,
				Timeout: getEnvOrDefault("HTTP_TIMEOUT", "30s"),
			},
		},
		Database: DatabaseConfig{
			MongoDB: MongoDBConfig{
				URI:            getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
				DBName:         getEnvOrDefault("MONGODB_DB", "gochat"),
				ConnectTimeout: getEnvDurationOrDefault("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
				MaxPoolSize:    uint64(getEnvIntOrDefault("MONGODB_MAX_POOL_SIZE", 100)),
			},
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnvOrDefault("KAFKA_GROUP_EVENT_TOPIC", "group_events"),
		},
		Avatar: AvatarConfig{
			Dir:     getEnvOrDefault("AVATAR_DIR", "./data/avatars"),
			BaseURL: getEnvOrDefault("AVATAR_BASE_URL", "/avatars"),
		},
	}
}

// getEnvOrDefault 获取环境变量或默认值
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDurationOrDefault 获取环境变量时长或默认值
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvIntOrDefault 获取环境变量整数值或默认值
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
