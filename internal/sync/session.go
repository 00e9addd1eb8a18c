package sync

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/tavolo/possync/internal/messaging"
)

// DefaultPollInterval is the fallback cadence when push delivery is silent.
const DefaultPollInterval = 15 * time.Second

// Session runs the two reconcile triggers for one logged-in terminal: the
// Service Bus push loop and the gocron interval poll. It lives from login
// to logout; Close stops both triggers.
type Session struct {
	reconciler *Reconciler
	bus        messaging.ServiceBusClient
	scheduler  gocron.Scheduler
	tenantID   string
	interval   time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession builds a session. bus may be nil, leaving the poll timer as
// the only trigger.
func NewSession(reconciler *Reconciler, bus messaging.ServiceBusClient, tenantID string, interval time.Duration) (*Session, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	return &Session{
		reconciler: reconciler,
		bus:        bus,
		scheduler:  scheduler,
		tenantID:   tenantID,
		interval:   interval,
	}, nil
}

// Start launches both triggers and runs an immediate first reconcile so
// the terminal opens with current data. It returns once the triggers are
// running; failures after that are logged and retried, never fatal.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	if err := s.reconciler.Reconcile(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial reconcile failed, continuing with cached data")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if err := s.reconciler.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled reconcile failed")
			}
		}),
	)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to schedule reconcile job")
	}
	s.scheduler.Start()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if s.bus == nil {
			<-groupCtx.Done()
			return nil
		}
		return s.bus.ProcessMessages(groupCtx, s.handleChangeEvent)
	})

	go func() {
		defer close(s.done)
		if err := group.Wait(); err != nil {
			log.Error().Err(err).Msg("Push listener stopped with error")
		}
	}()
	return nil
}

// handleChangeEvent reacts to a push notification. Events for other
// tenants are completed without action; anything for this tenant triggers
// a full reconcile regardless of which entity changed.
func (s *Session) handleChangeEvent(ctx context.Context, event messaging.ChangeEvent) error {
	if event.TenantID != "" && event.TenantID != s.tenantID {
		return nil
	}
	log.Debug().
		Str("entity", event.Entity).
		Str("event_type", event.EventType).
		Msg("Change event received, reconciling")
	return s.reconciler.Reconcile(ctx)
}

// Close stops both triggers. Safe to call once per Start.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	return s.scheduler.Shutdown()
}
