package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                 string        `mapstructure:"ENV"`
	Port                string        `mapstructure:"PORT"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	AdminKey            string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed         string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DefaultLanguage     string        `mapstructure:"DEFAULT_LANGUAGE"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SessionSweepCron    string        `mapstructure:"SESSION_SWEEP_CRON"`
	MapItBaseURL        string        `mapstructure:"MAPIT_BASE_URL"`
	MapItTimeout        time.Duration `mapstructure:"MAPIT_TIMEOUT"`
	TelegramBotToken    string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramPollTimeout int           `mapstructure:"TELEGRAM_POLL_TIMEOUT"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DEFAULT_LANGUAGE", "en")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SESSION_SWEEP_CRON", "@every 1m")
	v.SetDefault("MAPIT_BASE_URL", "https://mapit.code4sa.org")
	v.SetDefault("MAPIT_TIMEOUT", "10s")
	v.SetDefault("TELEGRAM_POLL_TIMEOUT", 30)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
