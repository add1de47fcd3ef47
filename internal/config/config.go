// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"rda_bot/internal/message"
)

// Dedup backends.
const (
	DedupMemory = "memory"
	DedupSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	CheckInterval    time.Duration
	SeenLimit        int
	DefaultTemplate  string
	ClusterURL       string
	AnnouncementsURL string
	ReconnectDelay   time.Duration
	MaxMessageLen    int
	SendRate         int
	FanoutWorkers    int
	DedupBackend     string
	RDAListPath      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     envOr("DATABASE_PATH", "./data/bot.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		ClusterURL:       envOr("CLUSTER_WS_URL", "https://rdaward.ru"),
		AnnouncementsURL: envOr("ANNOUNCEMENTS_URL", "https://rdaward.ru"),
		DedupBackend:     strings.ToLower(envOr("DEDUP_BACKEND", DedupMemory)),
		RDAListPath:      os.Getenv("RDA_LIST_PATH"),
		DefaultTemplate:  message.DefaultTemplate,
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	ints := []struct {
		key  string
		def  int
		max  int
		dest *int
	}{
		{"SEEN_LIMIT", 5000, 0, &cfg.SeenLimit},
		{"MAX_MESSAGE_LEN", message.DefaultMaxLen, message.DefaultMaxLen, &cfg.MaxMessageLen},
		{"SEND_RATE_PER_SEC", 25, 0, &cfg.SendRate},
		{"FANOUT_WORKERS", 8, 0, &cfg.FanoutWorkers},
	}
	for _, v := range ints {
		n, err := positiveInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if v.max > 0 && n > v.max {
			return nil, fmt.Errorf("%s must be at most %d, got %d", v.key, v.max, n)
		}
		*v.dest = n
	}

	secs := []struct {
		key  string
		def  int
		dest *time.Duration
	}{
		{"CHECK_INTERVAL_SEC", 300, &cfg.CheckInterval},
		{"RECONNECT_DELAY_SEC", 15, &cfg.ReconnectDelay},
	}
	for _, v := range secs {
		n, err := positiveInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dest = time.Duration(n) * time.Second
	}

	if raw := os.Getenv("DEFAULT_FMT"); raw != "" {
		tmpl := strings.ReplaceAll(raw, `\n`, "\n")
		if err := message.Validate(tmpl); err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_FMT: %w", err)
		}
		cfg.DefaultTemplate = tmpl
	}

	switch cfg.DedupBackend {
	case DedupMemory, DedupSQLite:
	default:
		return nil, fmt.Errorf("DEDUP_BACKEND must be %q or %q, got %q", DedupMemory, DedupSQLite, cfg.DedupBackend)
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	return len(c.AllowedUsers) == 0 || slices.Contains(c.AllowedUsers, userID)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
