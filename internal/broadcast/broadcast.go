// Package broadcast delivers a message to every known subscriber, one send
// at a time, under the transport's abuse-prevention thresholds.
package broadcast

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lib/pq"

	"github.com/seowithroki-star/file-store-bot/internal/events"
	"github.com/seowithroki-star/file-store-bot/internal/models"
)

// ErrAlreadyRunning is returned when a broadcast is started while another
// run holds the lock.
var ErrAlreadyRunning = errors.New("a broadcast is already in progress")

// lockTTL bounds how long a crashed run can keep the lock.
const lockTTL = 2 * time.Hour

// Sender is the slice of the Telegram API the dispatcher needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Store is the slice of the persistence layer the dispatcher needs.
type Store interface {
	GetSubscriberIDs() ([]int64, error)
	SaveBroadcastRun(run *models.BroadcastRun) error
	AcquireBroadcastLock(ttl time.Duration) (bool, error)
	ReleaseBroadcastLock() error
	PublishEvent(evt events.Event) error
}

// Report summarizes one broadcast run.
type Report struct {
	Delivered int
	Failed    int
	Total     int
}

// Dispatcher fans a message out to the subscriber set.
type Dispatcher struct {
	API   Sender
	Store Store
	// Delay is the minimum pause between sends. This is a hard floor:
	// without it Telegram throttles or bans the whole bot, not just the
	// broadcast.
	Delay time.Duration
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(api Sender, store Store, delay time.Duration) *Dispatcher {
	return &Dispatcher{API: api, Store: store, Delay: delay}
}

// Run iterates the subscriber set once and sends text to each member.
// The ID set is snapshotted up front, so subscribers added mid-run are
// simply picked up by the next broadcast. A failed recipient is counted and
// skipped, never retried within the run. The context is checked before
// every send; a run over a large set can take minutes.
// excludeID, if non-zero, is skipped (normally the initiating admin).
func (d *Dispatcher) Run(ctx context.Context, text string, excludeID int64) (Report, error) {
	acquired, err := d.Store.AcquireBroadcastLock(lockTTL)
	if err != nil {
		return Report{}, err
	}
	if !acquired {
		return Report{}, ErrAlreadyRunning
	}
	defer func() {
		if err := d.Store.ReleaseBroadcastLock(); err != nil {
			log.Printf("WARN: Failed to release broadcast lock: %v", err)
		}
	}()

	ids, err := d.Store.GetSubscriberIDs()
	if err != nil {
		return Report{}, err
	}

	run := models.BroadcastRun{Text: text, StartedAt: time.Now()}
	report := Report{}

	for _, id := range ids {
		if id == excludeID {
			continue
		}

		// Check before counting: a recipient the run never reached must not
		// inflate the recorded total.
		select {
		case <-ctx.Done():
			log.Printf("INFO: Broadcast cancelled after %d send(s).", report.Total)
			d.finish(&run, report)
			return report, ctx.Err()
		default:
		}
		report.Total++

		if _, err := d.API.Send(tgbotapi.NewMessage(id, text)); err != nil {
			log.Printf("WARN: Broadcast send to %d failed: %v", id, err)
			report.Failed++
			run.FailedIDs = append(run.FailedIDs, strconv.FormatInt(id, 10))
		} else {
			report.Delivered++
		}

		if !d.pause(ctx) {
			d.finish(&run, report)
			return report, ctx.Err()
		}
	}

	d.finish(&run, report)
	return report, nil
}

// pause waits the inter-send delay, returning false if the context was
// cancelled during the wait.
func (d *Dispatcher) pause(ctx context.Context) bool {
	if d.Delay <= 0 {
		return true
	}
	timer := time.NewTimer(d.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) finish(run *models.BroadcastRun, report Report) {
	run.Total = report.Total
	run.Delivered = report.Delivered
	run.Failed = report.Failed
	run.FinishedAt = time.Now()
	if run.FailedIDs == nil {
		run.FailedIDs = pq.StringArray{}
	}
	if err := d.Store.SaveBroadcastRun(run); err != nil {
		log.Printf("ERROR: Failed to save broadcast run: %v", err)
	}
	if err := d.Store.PublishEvent(events.New(events.TypeBroadcastFinished,
		"delivered "+strconv.Itoa(report.Delivered)+" of "+strconv.Itoa(report.Total))); err != nil {
		log.Printf("WARN: Failed to publish broadcast event: %v", err)
	}
}
