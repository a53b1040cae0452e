package notifier

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/storage"
)

// staleAfter is how long an undeliverable notification is retried before it is dropped
const staleAfter = 24 * time.Hour

// Dispatcher delivers due pending notifications on a fixed interval.
type Dispatcher struct {
	store    storage.NotificationStore
	sender   Sender
	interval time.Duration
	now      func() time.Time

	scheduler gocron.Scheduler
}

func NewDispatcher(store storage.NotificationStore, sender Sender, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		interval: interval,
		now:      time.Now,
	}
}

// Start registers the delivery job and starts the scheduler.
func (d *Dispatcher) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = s.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() {
			if _, err := d.DeliverDue(); err != nil {
				logger.Error("Notification delivery pass failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}

	s.Start()
	d.scheduler = s
	return nil
}

func (d *Dispatcher) Stop() error {
	if d.scheduler == nil {
		return nil
	}
	err := d.scheduler.Shutdown()
	d.scheduler = nil
	return err
}

// DeliverDue sends every notification whose fire time has passed and removes
// it once sent. Failed deliveries stay pending until they go stale.
func (d *Dispatcher) DeliverDue() (int, error) {
	now := d.now()
	due, err := d.store.DuePendingNotifications(now)
	if err != nil {
		return 0, err
	}

	var done []string
	delivered := 0
	for _, n := range due {
		if err := d.sender.Send(n.Title, n.Body); err != nil {
			if now.Sub(n.FireAt) > staleAfter {
				logger.Warn("Dropping stale notification", "identifier", n.Identifier, "error", err)
				done = append(done, n.Identifier)
			} else {
				logger.Warn("Notification delivery failed", "identifier", n.Identifier, "error", err)
			}
			continue
		}
		logger.Debug("Delivered notification", "identifier", n.Identifier)
		done = append(done, n.Identifier)
		delivered++
	}

	if err := d.store.DeletePendingNotifications(done); err != nil {
		return delivered, err
	}
	return delivered, nil
}
