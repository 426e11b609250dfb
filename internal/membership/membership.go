// Package membership verifies that a user is a member of every configured
// gating channel before retrieval is allowed.
package membership

import (
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Status is the outcome of a membership verification.
type Status int

const (
	// StatusAllowed means the subject passed every gating channel.
	StatusAllowed Status = iota
	// StatusDenied means the subject has left or was banned from a channel.
	StatusDenied
	// StatusIndeterminate means a transport call failed and no verdict could
	// be reached. The caller decides fail-open vs fail-closed; this package
	// never maps an error to a verdict on its own.
	StatusIndeterminate
)

// Result carries the verdict plus, for a denial, the first channel that
// failed in configured order.
type Result struct {
	Status        Status
	FailedChannel int64
	Err           error
}

// ChatMemberAPI is the slice of the Telegram API the verifier needs.
// *tgbotapi.BotAPI satisfies it.
type ChatMemberAPI interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Cache stores recent positive checks so repeated retrievals don't repeat
// the transport calls. May be nil to disable caching.
type Cache interface {
	IsMembershipCached(channelID, userID int64) (bool, error)
	CacheMembership(channelID, userID int64, ttl time.Duration) error
}

// Verifier checks a subject against an ordered list of gating channels with
// AND semantics, stopping at the first failure.
type Verifier struct {
	API      ChatMemberAPI
	Channels []int64
	Cache    Cache
	CacheTTL time.Duration
}

// NewVerifier creates a verifier over the given channel list. The list is
// deduplicated preserving order; order is evaluation order.
func NewVerifier(api ChatMemberAPI, channels []int64, cache Cache, cacheTTL time.Duration) *Verifier {
	seen := make(map[int64]bool)
	deduped := make([]int64, 0, len(channels))
	for _, id := range channels {
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	return &Verifier{API: api, Channels: deduped, Cache: cache, CacheTTL: cacheTTL}
}

// Verify checks the subject against every gating channel, consulting the
// cache first. An empty channel list short-circuits to Allowed with no
// transport call.
func (v *Verifier) Verify(subjectID int64) Result {
	return v.verify(subjectID, true)
}

// Recheck is Verify with the cache bypassed, for the "I joined, check again"
// button: a user who just joined must not be blocked by a stale entry.
func (v *Verifier) Recheck(subjectID int64) Result {
	return v.verify(subjectID, false)
}

func (v *Verifier) verify(subjectID int64, useCache bool) Result {
	for _, channelID := range v.Channels {
		if useCache && v.Cache != nil {
			cached, err := v.Cache.IsMembershipCached(channelID, subjectID)
			if err != nil {
				log.Printf("WARN: Membership cache read failed for %d/%d: %v", channelID, subjectID, err)
			} else if cached {
				continue
			}
		}

		member, err := v.API.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: channelID,
				UserID: subjectID,
			},
		})
		if err != nil {
			log.Printf("WARN: getChatMember failed for channel %d, user %d: %v", channelID, subjectID, err)
			return Result{Status: StatusIndeterminate, FailedChannel: channelID, Err: err}
		}

		if member.HasLeft() || member.WasKicked() {
			return Result{Status: StatusDenied, FailedChannel: channelID}
		}

		if v.Cache != nil {
			if err := v.Cache.CacheMembership(channelID, subjectID, v.CacheTTL); err != nil {
				log.Printf("WARN: Membership cache write failed for %d/%d: %v", channelID, subjectID, err)
			}
		}
	}
	return Result{Status: StatusAllowed}
}
