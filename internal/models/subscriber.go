package models

import "time"

// Subscriber is a chat participant known to the bot. A record is upserted on
// every inbound interaction and never deleted; existence here is independent
// of membership in any gating channel.
type Subscriber struct {
	// TelegramID is the participant's chat ID.
	TelegramID int64 `gorm:"primaryKey;autoIncrement:false"`
	// DisplayName is advisory and overwritten on every interaction.
	DisplayName string `gorm:"type:text"`
	// LastSeenAt is advisory and overwritten on every interaction.
	LastSeenAt time.Time
}
