package config

import "time"

const (
	// Retention
	DefaultFileTTL       = 24 * time.Hour
	DefaultSweepInterval = 5 * time.Minute

	// Broadcast
	// MinBroadcastDelay is a hard floor: Telegram throttles bots that send
	// faster than roughly 30 messages per second, and a throttled bot stalls
	// every handler, not just the broadcast.
	DefaultBroadcastDelay = 100 * time.Millisecond
	MinBroadcastDelay     = 50 * time.Millisecond

	// Membership
	MembershipCacheTTL = 2 * time.Minute

	// Dashboard
	DashboardTokenTTL = 72 * time.Hour
)
