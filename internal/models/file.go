package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/seowithroki-star/file-store-bot/internal/linkcode"
)

// Media kinds recognized by the relay. The kind is fixed at ingestion and
// selects the Telegram send method used at delivery time.
const (
	KindDocument = "document"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindPhoto    = "photo"
)

// StoredFile represents one archived media item.
// Records are append/delete only: once created, no field is ever updated.
type StoredFile struct {
	// Token is the opaque deep-link token and the primary lookup key.
	Token string `gorm:"primaryKey"`
	// ArchiveChatID is the channel holding the re-published copy.
	ArchiveChatID int64 `gorm:"not null"`
	// ArchiveMessageID is the message ID of the re-published copy.
	ArchiveMessageID int `gorm:"not null"`
	// FileID is the Telegram file handle used to deliver the item.
	FileID string `gorm:"type:text;not null"`
	// Kind is one of the Kind* constants.
	Kind string `gorm:"type:text;not null"`
	// DisplayName is a best-effort human label; may be empty.
	DisplayName string `gorm:"type:text"`
	// CreatedAt drives the retention reaper's range scan.
	CreatedAt time.Time `gorm:"index"`
	// CreatedBy is the Telegram ID of the ingesting sender.
	CreatedBy int64
}

// BeforeCreate is a GORM hook that assigns a fresh token if one has not been
// set yet. The registry normally assigns the token itself; this keeps a write
// through any other path from producing an entry with an empty key.
func (f *StoredFile) BeforeCreate(tx *gorm.DB) (err error) {
	if f.Token == "" {
		f.Token = linkcode.New()
	}
	return
}

// ArchiveRef is the minimal handle to an archived copy, returned by eviction
// so the reaper can purge the channel copy after the registry row is gone.
type ArchiveRef struct {
	Token     string
	ChatID    int64
	MessageID int
}
