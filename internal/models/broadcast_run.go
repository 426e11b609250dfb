package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// BroadcastRun records the outcome of one full pass over the subscriber set.
type BroadcastRun struct {
	gorm.Model

	// Text is the message that was broadcast.
	Text string `gorm:"type:text;not null"`
	// Total is the size of the subscriber snapshot at the start of the run.
	Total int
	// Delivered is the number of successful sends.
	Delivered int
	// Failed is the number of recipients whose send errored.
	Failed int
	// FailedIDs holds the Telegram IDs that could not be reached.
	FailedIDs pq.StringArray `gorm:"type:text[]"`
	// StartedAt / FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
}
