// Package reaper runs the periodic retention sweep that evicts expired
// registry entries and, optionally, purges their archive-channel copies.
package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seowithroki-star/file-store-bot/internal/events"
	"github.com/seowithroki-star/file-store-bot/internal/registry"
)

// MessageDeleter is the slice of the Telegram API the reaper needs.
type MessageDeleter interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// EventPublisher receives sweep events for the dashboard feed. May be nil.
type EventPublisher interface {
	PublishEvent(evt events.Event) error
}

// Reaper periodically evicts registry entries older than TTL. It is a
// single long-lived task started once at process init, never tied to any
// request's lifecycle.
type Reaper struct {
	Registry *registry.Registry
	API      MessageDeleter
	Events   EventPublisher

	// TTL is the retention window; non-positive disables expiry.
	TTL time.Duration
	// Interval is the sweep period, typically much shorter than TTL.
	Interval time.Duration
	// PurgeArchive controls whether evicted entries' channel copies are
	// deleted as well.
	PurgeArchive bool
}

// NewReaper creates a new Reaper instance.
func NewReaper(reg *registry.Registry, api MessageDeleter, ev EventPublisher, ttl, interval time.Duration, purgeArchive bool) *Reaper {
	return &Reaper{
		Registry:     reg,
		API:          api,
		Events:       ev,
		TTL:          ttl,
		Interval:     interval,
		PurgeArchive: purgeArchive,
	}
}

// Run loops Sweep on the configured interval until the context is
// cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.TTL <= 0 {
		log.Println("INFO: File TTL disabled; retention reaper will not run.")
		return
	}
	log.Printf("INFO: Retention reaper started (ttl=%v, interval=%v).", r.TTL, r.Interval)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: Retention reaper stopped.")
			return
		case <-ticker.C:
			if _, err := r.Sweep(time.Now()); err != nil {
				log.Printf("ERROR: Retention sweep failed: %v", err)
			}
		}
	}
}

// Sweep evicts everything past TTL as of now and returns the eviction
// count. Archive-copy deletions are best effort: the registry is
// authoritative for whether a link still works, so a leftover channel copy
// is an acceptable loss, logged and never retried.
func (r *Reaper) Sweep(now time.Time) (int, error) {
	refs, err := r.Registry.EvictExpired(r.TTL, now)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	if r.PurgeArchive {
		for _, ref := range refs {
			if _, err := r.API.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
				log.Printf("WARN: Failed to delete archive copy %d/%d (token %s): %v",
					ref.ChatID, ref.MessageID, ref.Token, err)
			}
		}
	}

	log.Printf("INFO: Retention sweep evicted %d file(s).", len(refs))
	if r.Events != nil {
		if err := r.Events.PublishEvent(events.New(events.TypeSweepCompleted,
			fmt.Sprintf("evicted %d file(s)", len(refs)))); err != nil {
			log.Printf("WARN: Failed to publish sweep event: %v", err)
		}
	}
	return len(refs), nil
}
