package membership_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/seowithroki-star/file-store-bot/internal/membership"
)

type MockChatMemberAPI struct {
	mock.Mock
}

func (m *MockChatMemberAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.ChatMember), args.Error(1)
}

func forChannel(channelID int64) interface{} {
	return mock.MatchedBy(func(c tgbotapi.GetChatMemberConfig) bool {
		return c.ChatID == channelID
	})
}

// fakeCache is an in-memory membership.Cache double.
type fakeCache struct {
	entries map[string]bool
	writes  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]bool)}
}

func (c *fakeCache) IsMembershipCached(channelID, userID int64) (bool, error) {
	return c.entries[fmt.Sprintf("%d:%d", channelID, userID)], nil
}

func (c *fakeCache) CacheMembership(channelID, userID int64, ttl time.Duration) error {
	c.entries[fmt.Sprintf("%d:%d", channelID, userID)] = true
	c.writes++
	return nil
}

// TestVerify_EmptyChannelList verifies the short-circuit: no gating
// channels means Allowed with zero transport calls.
func TestVerify_EmptyChannelList(t *testing.T) {
	api := new(MockChatMemberAPI)
	v := membership.NewVerifier(api, nil, nil, 0)

	result := v.Verify(42)

	assert.Equal(t, membership.StatusAllowed, result.Status)
	api.AssertNotCalled(t, "GetChatMember")
}

// TestVerify_DeniedReportsFirstFailingChannel verifies evaluation order:
// with channels [1,2,3] where 1 passes and 2 and 3 both fail, the denial
// names channel 2 and channel 3 is never queried.
func TestVerify_DeniedReportsFirstFailingChannel(t *testing.T) {
	api := new(MockChatMemberAPI)
	api.On("GetChatMember", forChannel(1)).Return(tgbotapi.ChatMember{Status: "member"}, nil)
	api.On("GetChatMember", forChannel(2)).Return(tgbotapi.ChatMember{Status: "left"}, nil)
	api.On("GetChatMember", forChannel(3)).Return(tgbotapi.ChatMember{Status: "left"}, nil)

	v := membership.NewVerifier(api, []int64{1, 2, 3}, nil, 0)
	result := v.Verify(42)

	assert.Equal(t, membership.StatusDenied, result.Status)
	assert.Equal(t, int64(2), result.FailedChannel)
	api.AssertNumberOfCalls(t, "GetChatMember", 2)
}

func TestVerify_BannedCountsAsDenied(t *testing.T) {
	api := new(MockChatMemberAPI)
	api.On("GetChatMember", forChannel(1)).Return(tgbotapi.ChatMember{Status: "kicked"}, nil)

	v := membership.NewVerifier(api, []int64{1}, nil, 0)
	result := v.Verify(42)

	assert.Equal(t, membership.StatusDenied, result.Status)
	assert.Equal(t, int64(1), result.FailedChannel)
}

func TestVerify_AllChannelsPass(t *testing.T) {
	api := new(MockChatMemberAPI)
	api.On("GetChatMember", mock.Anything).Return(tgbotapi.ChatMember{Status: "member"}, nil)

	v := membership.NewVerifier(api, []int64{1, 2}, nil, 0)
	result := v.Verify(42)

	assert.Equal(t, membership.StatusAllowed, result.Status)
	api.AssertNumberOfCalls(t, "GetChatMember", 2)
}

// TestVerify_TransportErrorIsIndeterminate verifies a failed transport
// call is never silently mapped to Allowed or Denied.
func TestVerify_TransportErrorIsIndeterminate(t *testing.T) {
	api := new(MockChatMemberAPI)
	transportErr := errors.New("Bad Gateway")
	api.On("GetChatMember", forChannel(1)).Return(tgbotapi.ChatMember{}, transportErr)

	v := membership.NewVerifier(api, []int64{1}, nil, 0)
	result := v.Verify(42)

	assert.Equal(t, membership.StatusIndeterminate, result.Status)
	assert.ErrorIs(t, result.Err, transportErr)
}

func TestNewVerifier_DeduplicatesPreservingOrder(t *testing.T) {
	v := membership.NewVerifier(new(MockChatMemberAPI), []int64{3, 1, 3, 2, 1}, nil, 0)

	assert.Equal(t, []int64{3, 1, 2}, v.Channels)
}

// TestVerify_UsesCache verifies a cached positive check skips the
// transport call, while Recheck bypasses the cache.
func TestVerify_UsesCache(t *testing.T) {
	api := new(MockChatMemberAPI)
	api.On("GetChatMember", mock.Anything).Return(tgbotapi.ChatMember{Status: "member"}, nil)

	cache := newFakeCache()
	cache.entries["1:42"] = true

	v := membership.NewVerifier(api, []int64{1, 2}, cache, time.Minute)

	result := v.Verify(42)
	assert.Equal(t, membership.StatusAllowed, result.Status)
	// Channel 1 answered from cache, only channel 2 hit the transport.
	api.AssertNumberOfCalls(t, "GetChatMember", 1)

	result = v.Recheck(42)
	assert.Equal(t, membership.StatusAllowed, result.Status)
	// Both channels queried fresh.
	api.AssertNumberOfCalls(t, "GetChatMember", 3)
}

// TestVerify_CachesPositiveResults verifies passing channels get written
// back to the cache.
func TestVerify_CachesPositiveResults(t *testing.T) {
	api := new(MockChatMemberAPI)
	api.On("GetChatMember", mock.Anything).Return(tgbotapi.ChatMember{Status: "administrator"}, nil)

	cache := newFakeCache()
	v := membership.NewVerifier(api, []int64{1, 2}, cache, time.Minute)

	v.Verify(42)

	assert.Equal(t, 2, cache.writes)
}
