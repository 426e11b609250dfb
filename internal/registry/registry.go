// Package registry owns the token -> archived-file mapping: creation at
// ingestion, lookup at retrieval, and TTL-based eviction for the reaper.
package registry

import (
	"fmt"
	"log"
	"time"

	"github.com/seowithroki-star/file-store-bot/internal/linkcode"
	"github.com/seowithroki-star/file-store-bot/internal/models"
)

// Store is the slice of the persistence layer the registry needs.
type Store interface {
	CreateFile(file *models.StoredFile) error
	GetFileByToken(token string) (*models.StoredFile, error)
	DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error)
}

// Registry is the sole authority mapping tokens to archive locations.
type Registry struct {
	Store Store
}

// NewRegistry creates a new Registry instance.
func NewRegistry(store Store) *Registry {
	return &Registry{Store: store}
}

// Create persists a new archived file and mints its token. The write is a
// single atomic insert; a failure here must reach the ingesting sender as an
// explicit error, never a false success.
func (r *Registry) Create(archiveChatID int64, archiveMessageID int, fileID, kind, displayName string, createdBy int64) (*models.StoredFile, error) {
	file := &models.StoredFile{
		Token:            linkcode.New(),
		ArchiveChatID:    archiveChatID,
		ArchiveMessageID: archiveMessageID,
		FileID:           fileID,
		Kind:             kind,
		DisplayName:      displayName,
		CreatedAt:        time.Now(),
		CreatedBy:        createdBy,
	}
	if err := r.Store.CreateFile(file); err != nil {
		log.Printf("ERROR: Failed to create file entry (kind=%s, sender=%d): %v", kind, createdBy, err)
		return nil, fmt.Errorf("create file entry: %w", err)
	}
	return file, nil
}

// Lookup resolves a token to its file. Returns storage.ErrNotFound for
// tokens that were never issued or have already been evicted; callers must
// not distinguish the two.
func (r *Registry) Lookup(token string) (*models.StoredFile, error) {
	return r.Store.GetFileByToken(token)
}

// EvictExpired removes every entry older than ttl relative to now and
// returns the archive refs of the removed entries. A non-positive ttl means
// retention is unbounded and nothing is ever evicted.
func (r *Registry) EvictExpired(ttl time.Duration, now time.Time) ([]models.ArchiveRef, error) {
	if ttl <= 0 {
		return nil, nil
	}
	return r.Store.DeleteFilesBefore(now.Add(-ttl))
}
