// Package config loads the process configuration from the environment and
// holds the tuning constants for the relay's background tasks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the environment-level configuration consumed by the components.
type Config struct {
	// BotToken authenticates the bot against the Telegram API.
	BotToken string

	// ArchiveChannelID is the append-only channel that receives a copy of
	// every ingested file.
	ArchiveChannelID int64

	// GatingChannelIDs is the ordered, deduplicated list of channels a user
	// must be a member of before retrieval is allowed. Empty means no gating.
	GatingChannelIDs []int64
	// GatingChannelLinks are optional invite links parallel to
	// GatingChannelIDs, used to render the join prompt.
	GatingChannelLinks []string

	// AdminIDs are the privileged senders allowed to ingest and broadcast.
	AdminIDs []int64

	// FileTTL is how long an archived file stays retrievable. Zero or
	// negative disables expiry entirely.
	FileTTL time.Duration
	// SweepInterval is how often the reaper wakes up; independent of FileTTL.
	SweepInterval time.Duration
	// PurgeArchiveCopy controls whether the reaper also deletes the archive
	// channel copy of each evicted entry.
	PurgeArchiveCopy bool

	// BroadcastDelay is the minimum pause between broadcast sends.
	BroadcastDelay time.Duration

	// MembershipFailClosed decides what to do when a membership check cannot
	// be completed: true treats the user as denied, false lets them through.
	MembershipFailClosed bool

	// AdminAPIKey guards issuance of dashboard JWTs; empty disables the
	// admin HTTP endpoints.
	AdminAPIKey string
	// JWTSecret signs dashboard tokens.
	JWTSecret string

	// HTTPAddr is the listen address of the health/admin server.
	HTTPAddr string

	// RedisAddr and RedisPassword configure the Redis connection.
	RedisAddr     string
	RedisPassword string
}

// Load reads the configuration from the environment. Only the bot token and
// the archive channel are mandatory; everything else has a usable default.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:             os.Getenv("TELEGRAM_BOT_TOKEN"),
		GatingChannelLinks:   splitList(os.Getenv("GATING_CHANNEL_LINKS")),
		FileTTL:              envDuration("FILE_TTL_SECONDS", DefaultFileTTL),
		SweepInterval:        envDuration("SWEEP_INTERVAL_SECONDS", DefaultSweepInterval),
		PurgeArchiveCopy:     envBool("PURGE_ARCHIVE_COPY", true),
		BroadcastDelay:       envMillis("BROADCAST_DELAY_MS", DefaultBroadcastDelay),
		MembershipFailClosed: envBool("MEMBERSHIP_FAIL_CLOSED", true),
		AdminAPIKey:          os.Getenv("ADMIN_API_KEY"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		HTTPAddr:             envString("HTTP_ADDR", ":8080"),
		RedisAddr:            envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	archiveID, err := strconv.ParseInt(os.Getenv("ARCHIVE_CHANNEL_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ARCHIVE_CHANNEL_ID is missing or not an integer: %w", err)
	}
	cfg.ArchiveChannelID = archiveID

	cfg.GatingChannelIDs, err = parseIDList(os.Getenv("GATING_CHANNEL_IDS"))
	if err != nil {
		return nil, fmt.Errorf("GATING_CHANNEL_IDS: %w", err)
	}

	cfg.AdminIDs, err = parseIDList(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS is not set; at least one privileged sender is required")
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.BroadcastDelay < MinBroadcastDelay {
		cfg.BroadcastDelay = MinBroadcastDelay
	}

	return cfg, nil
}

// IsAdmin reports whether the given Telegram ID is a privileged sender.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// GatingChannelLink returns the configured invite link for a gating channel,
// or "" when none was provided.
func (c *Config) GatingChannelLink(channelID int64) string {
	for i, id := range c.GatingChannelIDs {
		if id == channelID && i < len(c.GatingChannelLinks) {
			return c.GatingChannelLinks[i]
		}
	}
	return ""
}

// parseIDList parses a comma-separated list of int64 IDs, deduplicating
// while preserving order. Order matters: gating channels are checked
// first-to-last.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", part, err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
