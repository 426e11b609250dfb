package telegram

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"

	"github.com/seowithroki-star/file-store-bot/internal/events"
	"github.com/seowithroki-star/file-store-bot/internal/models"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
)

// MockBotAPI is a mock implementation of the BotAPI interface.
type MockBotAPI struct {
	mock.Mock
}

func (m *MockBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *MockBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *MockBotAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.ChatMember), args.Error(1)
}

// MockStore is a mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpsertSubscriber(telegramID int64, displayName string) error {
	args := m.Called(telegramID, displayName)
	return args.Error(0)
}

func (m *MockStore) CountFiles() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CountSubscribers() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) PublishEvent(evt events.Event) error {
	args := m.Called(evt)
	return args.Error(0)
}

// MockRegistryStore is a testify double for registry.Store, used where a
// test must assert which registry calls happened.
type MockRegistryStore struct {
	mock.Mock
}

func (m *MockRegistryStore) CreateFile(file *models.StoredFile) error {
	args := m.Called(file)
	return args.Error(0)
}

func (m *MockRegistryStore) GetFileByToken(token string) (*models.StoredFile, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredFile), args.Error(1)
}

func (m *MockRegistryStore) DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error) {
	args := m.Called(cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ArchiveRef), args.Error(1)
}

// memFileStore is an in-memory registry.Store for the lifecycle scenario.
type memFileStore struct {
	mu    sync.Mutex
	files map[string]models.StoredFile
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string]models.StoredFile)}
}

func (m *memFileStore) CreateFile(file *models.StoredFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.Token] = *file
	return nil
}

func (m *memFileStore) GetFileByToken(token string) (*models.StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &file, nil
}

func (m *memFileStore) DeleteFilesBefore(cutoff time.Time) ([]models.ArchiveRef, error) {
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

func (m *memFileStore) age(token string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file := m.files[token]
	file.CreatedAt = file.CreatedAt.Add(-by)
	m.files[token] = file
}

func (m *memFileStore) onlyToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token := range m.files {
		return token
	}
	return ""
}

// fakeBroadcastStore is a broadcast.Store double that signals run
// completion, so tests can wait for the background goroutine.
type fakeBroadcastStore struct {
	mu   sync.Mutex
	ids  []int64
	runs []models.BroadcastRun
	done chan struct{}
}

func newBroadcastStore(ids []int64) *fakeBroadcastStore {
	return &fakeBroadcastStore{ids: ids, done: make(chan struct{}, 1)}
}

func (f *fakeBroadcastStore) GetSubscriberIDs() ([]int64, error) { return f.ids, nil }

func (f *fakeBroadcastStore) SaveBroadcastRun(run *models.BroadcastRun) error {
	f.mu.Lock()
	f.runs = append(f.runs, *run)
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeBroadcastStore) AcquireBroadcastLock(ttl time.Duration) (bool, error) { return true, nil }
func (f *fakeBroadcastStore) ReleaseBroadcastLock() error                          { return nil }
func (f *fakeBroadcastStore) PublishEvent(evt events.Event) error                  { return nil }
