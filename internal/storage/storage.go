package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/seowithroki-star/file-store-bot/internal/events"
	"github.com/seowithroki-star/file-store-bot/internal/models"
)

// ErrNotFound is returned when a lookup matches no record. It deliberately
// covers both never-issued and already-evicted tokens.
var ErrNotFound = errors.New("record not found")

type Storage interface {
	CreateFile(file *models.StoredFile) error
	GetFileByToken(token string) (*models.StoredFile, error)
	DeleteFileByToken(token string) error
	DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error)
	CountFiles() (int64, error)

	UpsertSubscriber(telegramID int64, displayName string) error
	GetSubscriberIDs() ([]int64, error)
	CountSubscribers() (int64, error)

	SaveBroadcastRun(run *models.BroadcastRun) error
	GetRecentBroadcastRuns(limit int) ([]models.BroadcastRun, error)

	CacheMembership(channelID, userID int64, ttl time.Duration) error
	IsMembershipCached(channelID, userID int64) (bool, error)
	AcquireBroadcastLock(ttl time.Duration) (bool, error)
	ReleaseBroadcastLock() error

	PublishEvent(evt events.Event) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// CreateFile persists a new archived file. One atomic write; there is no
// partially visible state for concurrent lookups to observe.
func (s *Service) CreateFile(file *models.StoredFile) error {
	return s.DB.Create(file).Error
}

// GetFileByToken is a pure read; it never touches advisory fields.
func (s *Service) GetFileByToken(token string) (*models.StoredFile, error) {
	var file models.StoredFile
	err := s.DB.Where("token = ?", token).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFileByToken removes a single entry, used by the admin CLI to revoke
// a link ahead of its TTL.
func (s *Service) DeleteFileByToken(token string) error {
	result := s.DB.Where("token = ?", token).Delete(&models.StoredFile{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFilesBefore removes every file created at or before cutoff and
// returns the archive coordinates of the removed rows so the caller can
// purge the channel copies. Deletion goes by the selected tokens, so rows
// created concurrently with the sweep are never caught by it.
func (s *Service) DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error) {
	var expired []models.StoredFile
	if err := s.DB.Where("created_at <= ?", cutoff).Find(&expired).Error; err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	tokens := make([]string, 0, len(expired))
	refs := make([]models.ArchiveRef, 0, len(expired))
	for _, f := range expired {
		tokens = append(tokens, f.Token)
		refs = append(refs, models.ArchiveRef{
			Token:     f.Token,
			ChatID:    f.ArchiveChatID,
			MessageID: f.ArchiveMessageID,
		})
	}

	if err := s.DB.Where("token IN ?", tokens).Delete(&models.StoredFile{}).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Service) CountFiles() (int64, error) {
	var count int64
	err := s.DB.Model(&models.StoredFile{}).Count(&count).Error
	return count, err
}

// UpsertSubscriber inserts the subscriber on first contact and otherwise
// refreshes only the advisory fields. The assign values go in as a map so
// an empty display name still overwrites the stored one.
func (s *Service) UpsertSubscriber(telegramID int64, displayName string) error {
	sub := models.Subscriber{TelegramID: telegramID}
	return s.DB.
		Assign(map[string]interface{}{
			"display_name": displayName,
			"last_seen_at": time.Now(),
		}).
		FirstOrCreate(&sub).Error
}

// GetSubscriberIDs returns a snapshot of all known subscriber IDs.
func (s *Service) GetSubscriberIDs() ([]int64, error) {
	var ids []int64
	err := s.DB.Model(&models.Subscriber{}).Pluck("telegram_id", &ids).Error
	return ids, err
}

func (s *Service) CountSubscribers() (int64, error) {
	var count int64
	err := s.DB.Model(&models.Subscriber{}).Count(&count).Error
	return count, err
}

func (s *Service) SaveBroadcastRun(run *models.BroadcastRun) error {
	return s.DB.Create(run).Error
}

func (s *Service) GetRecentBroadcastRuns(limit int) ([]models.BroadcastRun, error) {
	var runs []models.BroadcastRun
	err := s.DB.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// Ping verifies both backing stores are reachable; used by the health check.
func (s *Service) Ping() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return err
	}
	if s.Redis != nil {
		return s.Redis.Ping(s.Ctx).Err()
	}
	return nil
}
