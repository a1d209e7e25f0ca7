// Package config 门户服务配置
package config

import (
	"os"
	"strconv"

	"github.com/madhesh935/HS---Health-Smart/internal/common/config"
)

// Config 门户服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 门户特定配置
	Portal struct {
		Addr string // HTTP 监听地址
		Scan struct {
			FrameTopic string // 帧样本主题，如 "rppg/+/frames"
		}
		OTPTTLSeconds   int // 验证码有效期
		TokenTTLHours   int // 会话令牌有效期
		VitalsTTLSecond int // 实时快照 TTL
	}

	SMS struct {
		BaseURL string
		APIKey  string
	}

	Assistant struct {
		Enabled bool
		BaseURL string
		APIKey  string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "healthsmart")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "healthsmart-portal")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	cfg.Portal.Addr = getEnv("PORTAL_ADDR", ":8080")
	cfg.Portal.Scan.FrameTopic = getEnv("SCAN_FRAME_TOPIC", "rppg/+/frames")
	cfg.Portal.OTPTTLSeconds = getEnvInt("OTP_TTL_SECONDS", 300)
	cfg.Portal.TokenTTLHours = getEnvInt("TOKEN_TTL_HOURS", 24)
	cfg.Portal.VitalsTTLSecond = getEnvInt("VITALS_TTL_SECONDS", 10)

	cfg.SMS.BaseURL = getEnv("SMS_BASE_URL", "http://localhost:9010")
	cfg.SMS.APIKey = getEnv("SMS_API_KEY", "")

	cfg.Assistant.Enabled = getEnv("ASSISTANT_ENABLED", "false") == "true"
	cfg.Assistant.BaseURL = getEnv("ASSISTANT_BASE_URL", "http://localhost:9020")
	cfg.Assistant.APIKey = getEnv("ASSISTANT_API_KEY", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
