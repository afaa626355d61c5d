package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string // metrics listener, empty disables it
	SQLitePath      string
	StoreDriver     string // sqlite, postgres or memory
	PostgresDSN     string
	GroupID         string
	BotPhone        string
	ReplyDelayMinMs int  // Minimum delay before reply (milliseconds)
	ReplyDelayMaxMs int  // Maximum delay before reply (milliseconds), 0 = use min as fixed
	ShowTyping      bool // Show typing indicator during delay

	LogLevel      string
	LogFormat     string // console or json
	Timezone      string
	RulesPath     string // optional YAML file overriding the default rules
	DailyStepGoal int
	CampaignStart time.Time
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults/environment variables")
	}

	return Config{
		Port:            getenv("PORT", ""),
		SQLitePath:      getenv("SQLITE_PATH", "./data/whatsapp.db"),
		StoreDriver:     getenv("STORE_DRIVER", "sqlite"),
		PostgresDSN:     getenv("POSTGRES_DSN", ""),
		GroupID:         getenv("GROUP_ID", ""),
		BotPhone:        getenv("BOT_PHONE", ""),
		ReplyDelayMinMs: getenvInt("REPLY_DELAY_MIN_MS", 0),
		ReplyDelayMaxMs: getenvInt("REPLY_DELAY_MAX_MS", 0),
		ShowTyping:      getenvBool("SHOW_TYPING", false),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "console"),
		Timezone:        getenv("TIMEZONE", "Asia/Jakarta"),
		RulesPath:       getenv("RULES_PATH", ""),
		DailyStepGoal:   getenvInt("DAILY_STEP_GOAL", 0),
		CampaignStart:   getenvDate("CAMPAIGN_START", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Unknown TIMEZONE %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDate(key string, fallback time.Time) time.Time {
	if v := os.Getenv(key); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return fallback
}
