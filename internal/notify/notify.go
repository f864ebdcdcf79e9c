// Package notify delivers registration notices to the organisers. Delivery
// is fire-and-forget: failures are logged and counted, never returned to the
// registering user.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers one notice to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, notice model.RegistrationNotice) error
}

// Dispatcher fans a notice out to every notifier in the background.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher returns a Dispatcher giving each delivery at most timeout.
func NewDispatcher(timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, timeout: timeout}
}

// Len returns the number of configured notifiers.
func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Dispatch starts one delivery per notifier and returns immediately.
func (d *Dispatcher) Dispatch(notice model.RegistrationNotice) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			d.deliver(n, notice)
		}(n)
	}
}

func (d *Dispatcher) deliver(n Notifier, notice model.RegistrationNotice) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger := log.WithFields(log.Fields{
		"notifier":        n.Name(),
		"registration_id": notice.RegistrationID,
	})
	if err := n.Notify(ctx, notice); err != nil {
		metrics.Notifications.WithLabelValues(n.Name(), metrics.OutcomeError).Inc()
		logger.WithError(err).Error("registration notice failed")
		return
	}
	metrics.Notifications.WithLabelValues(n.Name(), metrics.OutcomeOK).Inc()
	logger.Debug("registration notice delivered")
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
