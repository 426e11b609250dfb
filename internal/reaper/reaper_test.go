package reaper_test

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seowithroki-star/file-store-bot/internal/models"
	"github.com/seowithroki-star/file-store-bot/internal/reaper"
	"github.com/seowithroki-star/file-store-bot/internal/registry"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
)

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

// memStore is a minimal registry.Store double.
type memStore struct {
	mu    sync.Mutex
	files map[string]models.StoredFile
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string]models.StoredFile)}
}

func (m *memStore) put(token string, messageID int, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[token] = models.StoredFile{
		Token:            token,
		ArchiveChatID:    -100777,
		ArchiveMessageID: messageID,
		Kind:             models.KindDocument,
		CreatedAt:        time.Now().Add(-age),
	}
}

func (m *memStore) CreateFile(file *models.StoredFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.Token] = *file
	return nil
}

func (m *memStore) GetFileByToken(token string) (*models.StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &file, nil
}

func (m *memStore) DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []models.ArchiveRef
	for token, file := range m.files {
		if !file.CreatedAt.After(cutoff) {
			refs = append(refs, models.ArchiveRef{
				Token:     token,
				ChatID:    file.ArchiveChatID,
				MessageID: file.ArchiveMessageID,
			})
			delete(m.files, token)
		}
	}
	return refs, nil
}

func TestSweep_EvictsExpiredAndPurgesArchiveCopies(t *testing.T) {
	store := newMemStore()
	store.put("expired-one", 11, 2*time.Hour)
	store.put("expired-two", 12, 3*time.Hour)
	store.put("still-fresh", 13, time.Minute)

	deleter := new(MockDeleter)
	deleter.On("Request", mock.AnythingOfType("tgbotapi.DeleteMessageConfig")).
		Return(&tgbotapi.APIResponse{Ok: true}, nil)

	r := reaper.NewReaper(registry.NewRegistry(store), deleter, nil, time.Hour, time.Minute, true)
	count, err := r.Sweep(time.Now())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	deleter.AssertNumberOfCalls(t, "Request", 2)

	_, err = store.GetFileByToken("still-fresh")
	assert.NoError(t, err)
}

// TestSweep_ArchiveDeleteFailureIsNotFatal verifies a failed channel
// delete is logged and skipped; the registry entry stays gone.
func TestSweep_ArchiveDeleteFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	store.put("expired-one", 11, 2*time.Hour)

	deleter := new(MockDeleter)
	deleter.On("Request", mock.Anything).
		Return((*tgbotapi.APIResponse)(nil), assert.AnError)

	r := reaper.NewReaper(registry.NewRegistry(store), deleter, nil, time.Hour, time.Minute, true)
	count, err := r.Sweep(time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = store.GetFileByToken("expired-one")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweep_WithoutPurgeLeavesArchiveAlone(t *testing.T) {
	store := newMemStore()
	store.put("expired-one", 11, 2*time.Hour)

	deleter := new(MockDeleter)
	r := reaper.NewReaper(registry.NewRegistry(store), deleter, nil, time.Hour, time.Minute, false)
	count, err := r.Sweep(time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	deleter.AssertNotCalled(t, "Request", mock.Anything)
}

// TestSweep_SecondPassIsIdempotent verifies back-to-back sweeps with no
// new entries evict nothing extra.
func TestSweep_SecondPassIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.put("expired-one", 11, 2*time.Hour)

	deleter := new(MockDeleter)
	deleter.On("Request", mock.Anything).Return(&tgbotapi.APIResponse{Ok: true}, nil)

	r := reaper.NewReaper(registry.NewRegistry(store), deleter, nil, time.Hour, time.Minute, true)

	first, err := r.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := r.Sweep(time.Now())
	require.NoError(t, err)
	assert.Zero(t, second)
}

// TestSweep_DisabledTTLEvictsNothing verifies a non-positive TTL disables
// expiry entirely.
func TestSweep_DisabledTTLEvictsNothing(t *testing.T) {
	store := newMemStore()
	store.put("ancient", 11, 1000*time.Hour)

	deleter := new(MockDeleter)
	r := reaper.NewReaper(registry.NewRegistry(store), deleter, nil, 0, time.Minute, true)
	count, err := r.Sweep(time.Now())

	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = store.GetFileByToken("ancient")
	assert.NoError(t, err)
}
