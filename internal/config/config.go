package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

type Config struct {
	BotToken          string
	BotSecret         string
	PublicURL         string
	HTTPAddr          string
	GinMode           string
	DBDriver          string
	DBDSN             string
	UpstreamEndpoints []string
	ScheduleEndpoints []string
	UpstreamTimeout   time.Duration
	TickInterval      time.Duration
	CredentialKey     string
	FileBaseURL       string
	TelegramRateLimit int
	LogLevel          string
}

func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		jww.DEBUG.Println(".env file not found, using environment variables or defaults")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	upstream := splitList(v.GetString("UPSTREAM_ENDPOINTS"))
	schedule := splitList(v.GetString("SCHEDULE_ENDPOINTS"))
	if len(schedule) == 0 {
		schedule = upstream
	}

	return &Config{
		BotToken:          v.GetString("BOT_TOKEN"),
		BotSecret:         v.GetString("BOT_SECRET"),
		PublicURL:         strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		GinMode:           v.GetString("GIN_MODE"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:             v.GetString("DB_DSN"),
		UpstreamEndpoints: upstream,
		ScheduleEndpoints: schedule,
		UpstreamTimeout:   v.GetDuration("UPSTREAM_TIMEOUT"),
		TickInterval:      v.GetDuration("TICK_INTERVAL"),
		CredentialKey:     v.GetString("CREDENTIAL_KEY"),
		FileBaseURL:       strings.TrimRight(v.GetString("FILE_BASE_URL"), "/"),
		TelegramRateLimit: v.GetInt("TELEGRAM_RATE_LIMIT"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "ucloud-bot.db")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("TICK_INTERVAL", "5m")
	v.SetDefault("FILE_BASE_URL", "https://fileucloud.bupt.edu.cn/ucloud/document")
	v.SetDefault("TELEGRAM_RATE_LIMIT", 25)
	v.SetDefault("LOG_LEVEL", "info")
}

// splitList parses a comma separated endpoint list, keeping declaration order.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ApplyLogLevel configures jww thresholds from LOG_LEVEL.
func (c *Config) ApplyLogLevel() {
	level := jww.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = jww.LevelDebug
	case "warn":
		level = jww.LevelWarn
	case "error":
		level = jww.LevelError
	}
	jww.SetStdoutThreshold(level)
	jww.SetLogThreshold(level)
}
