package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seowithroki-star/file-store-bot/internal/events"
)

const (
	broadcastLockKey = "broadcast:lock"
	eventsChannel    = "relay:events"
)

func membershipKey(channelID, userID int64) string {
	return fmt.Sprintf("member:%d:%d", channelID, userID)
}

// CacheMembership records a positive membership check so repeated retrievals
// do not hammer getChatMember. Only positive results are cached; a denial
// must always be re-checkable immediately.
func (s *Service) CacheMembership(channelID, userID int64, ttl time.Duration) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Set(s.Ctx, membershipKey(channelID, userID), "1", ttl).Err()
}

// IsMembershipCached reports whether a recent positive check exists.
func (s *Service) IsMembershipCached(channelID, userID int64) (bool, error) {
	if s.Redis == nil {
		return false, nil
	}
	_, err := s.Redis.Get(s.Ctx, membershipKey(channelID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AcquireBroadcastLock takes the process-wide broadcast lock. A second
// broadcast started while one is running gets false.
func (s *Service) AcquireBroadcastLock(ttl time.Duration) (bool, error) {
	if s.Redis == nil {
		return true, nil
	}
	return s.Redis.SetNX(s.Ctx, broadcastLockKey, "1", ttl).Result()
}

func (s *Service) ReleaseBroadcastLock() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Del(s.Ctx, broadcastLockKey).Err()
}

// PublishEvent pushes an operational event onto the Redis feed consumed by
// the dashboard websocket.
func (s *Service) PublishEvent(evt events.Event) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventsChannel, string(payload)).Err()
}

// SubscribeEvents subscribes to the operational event feed.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, eventsChannel)
}
