package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	"bonus-hunt/internal/broadcast"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

const (
	// DefaultResyncInterval is how often a projector reloads without being
	// told to, covering notifications lost in transit.
	DefaultResyncInterval = 30 * time.Second

	defaultFetchTimeout = 10 * time.Second
)

// Subscriber is the part of the broadcaster a projector needs.
type Subscriber interface {
	Subscribe(huntID uuid.UUID, callback broadcast.Callback) (*broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// PublishFunc receives every snapshot a projector produces, in order.
type PublishFunc func(Snapshot)

// ProjectorOptions configures a Projector.
type ProjectorOptions struct {
	Clock          quartz.Clock
	ResyncInterval time.Duration
	FetchTimeout   time.Duration
	Logger         *log.Logger
}

// Projector keeps one overlay in sync with one hunt. It never applies
// deltas: every notification, resync tick or start triggers a full reload
// and a fresh snapshot, so duplicate or reordered notifications are
// harmless.
type Projector struct {
	huntID     uuid.UUID
	fetcher    StateFetcher
	subscriber Subscriber
	publish    PublishFunc

	clock          quartz.Clock
	resyncInterval time.Duration
	fetchTimeout   time.Duration
	logger         *log.Logger

	reloadCh chan struct{}

	mu       sync.Mutex
	started  bool
	sub      *broadcast.Subscription
	cancel   context.CancelFunc
	done     chan struct{}
	revision uint64
}

func NewProjector(fetcher StateFetcher, subscriber Subscriber, huntID uuid.UUID, publish PublishFunc, opts ProjectorOptions) *Projector {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = DefaultResyncInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Projector{
		huntID:         huntID,
		fetcher:        fetcher,
		subscriber:     subscriber,
		publish:        publish,
		clock:          opts.Clock,
		resyncInterval: opts.ResyncInterval,
		fetchTimeout:   opts.FetchTimeout,
		logger:         opts.Logger.WithPrefix("widget"),
		reloadCh:       make(chan struct{}, 1),
	}
}

// Start publishes a loading snapshot, subscribes to hunt changes and
// schedules the first reload. The subscription is taken before the first
// fetch so no change can slip between them.
func (p *Projector) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("projector already started")
	}

	sub, err := p.subscriber.Subscribe(p.huntID, func(context.Context, uuid.UUID) {
		p.requestReload()
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.resyncInterval, "projector", "resync")

	p.started = true
	p.sub = sub
	p.cancel = cancel
	p.done = make(chan struct{})

	p.emit(Loading(p.huntID, p.clock.Now()))
	p.requestReload()

	go p.loop(ctx, ticker)

	p.logger.Debug("Projector started", "hunt", p.huntID)
	return nil
}

// Stop releases the subscription and waits for the reload loop to exit.
func (p *Projector) Stop() {
	p.mu.Lock()
	if !p.started || p.cancel == nil {
		p.mu.Unlock()
		return
	}
	sub, cancel, done := p.sub, p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	p.subscriber.Unsubscribe(sub)
	cancel()
	<-done

	p.logger.Debug("Projector stopped", "hunt", p.huntID)
}

// Reload asks for a full reload, e.g. after a transport reconnect.
func (p *Projector) Reload() {
	p.requestReload()
}

func (p *Projector) requestReload() {
	select {
	case p.reloadCh <- struct{}{}:
	default:
	}
}

func (p *Projector) loop(ctx context.Context, ticker *quartz.Ticker) {
	defer close(p.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.reloadCh:
			p.reload(ctx)
		case <-ticker.C:
			p.reload(ctx)
		}
	}
}

func (p *Projector) reload(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	state, err := p.fetcher.GetHuntState(fctx, p.huntID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Debug("Widget reload failed", "hunt", p.huntID, "error", err)
	}

	p.emit(BuildSnapshot(p.huntID, state, err, p.clock.Now()))
}

func (p *Projector) emit(snap Snapshot) {
	p.revision++
	snap.Revision = p.revision
	p.publish(snap)
}
