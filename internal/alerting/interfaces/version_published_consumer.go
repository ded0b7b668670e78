package interfaces

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	alertapp "quake-pager/internal/alerting/application"
	alerting "quake-pager/internal/alerting/domain"
	"quake-pager/internal/eventing"
	"quake-pager/internal/pager/application/events"
	pager "quake-pager/internal/pager/domain"
)

// VersionReader loads version history snapshots.
type VersionReader interface {
	Latest(ctx context.Context, eventCode string) (*pager.Version, error)
	Previous(ctx context.Context, eventCode string, number int) (*pager.Version, error)
}

// SubscriberLister loads the subscriber roster.
type SubscriberLister interface {
	List(ctx context.Context) ([]alerting.Subscriber, error)
}

// Dispatcher delivers a decision round.
type Dispatcher interface {
	Deliver(ctx context.Context, version *pager.Version, outcome alertapp.Outcome)
}

// Clock provides time for decision rounds.
type Clock interface {
	Now() time.Time
}

// VersionPublishedConsumer reacts to published versions by running the
// decision engine and handing the round to the notifier.
type VersionPublishedConsumer struct {
	versions    VersionReader
	subscribers SubscriberLister
	engine      *alertapp.Engine
	dispatcher  Dispatcher
	clock       Clock
	logger      *log.Logger
}

// NewVersionPublishedConsumer constructs a consumer.
func NewVersionPublishedConsumer(
	versions VersionReader,
	subscribers SubscriberLister,
	engine *alertapp.Engine,
	dispatcher Dispatcher,
	clock Clock,
	logger *log.Logger,
) (*VersionPublishedConsumer, error) {
	if versions == nil {
		return nil, errors.New("alerting: nil version reader")
	}
	if subscribers == nil {
		return nil, errors.New("alerting: nil subscriber lister")
	}
	if engine == nil {
		return nil, errors.New("alerting: nil engine")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &VersionPublishedConsumer{
		versions:    versions,
		subscribers: subscribers,
		engine:      engine,
		dispatcher:  dispatcher,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Register subscribes the consumer on the bus with idempotency.
func (c *VersionPublishedConsumer) Register(bus eventing.EventBus, processed eventing.ProcessedStore) {
	eventing.Subscribe(bus, eventing.EventTypeName(events.VersionPublished{}), "alerting.version_published", c.Handle, processed)
}

// Handle runs one decision round for the published version.
func (c *VersionPublishedConsumer) Handle(ctx context.Context, event any) error {
	published, ok := event.(events.VersionPublished)
	if !ok {
		return fmt.Errorf("alerting: unexpected event payload %T", event)
	}

	current, err := c.versions.Latest(ctx, published.EventCode)
	if err != nil {
		return err
	}
	// The latest stored version may already be newer than the one announced.
	if current.Number != published.Number {
		c.logger.Printf("alerting: event %s announced v%d but latest is v%d, deciding on latest",
			published.EventCode, published.Number, current.Number)
	}
	previous, err := c.versions.Previous(ctx, published.EventCode, current.Number)
	if err != nil {
		return err
	}
	subscribers, err := c.subscribers.List(ctx)
	if err != nil {
		return err
	}

	outcome := c.engine.Decide(current, previous, subscribers, c.clock.Now())
	c.logger.Printf("alerting: event %s v%d decision round: %s, %d decisions",
		current.EventCode, current.Number, outcome.Status, len(outcome.Decisions))
	if c.dispatcher != nil {
		c.dispatcher.Deliver(ctx, current, outcome)
	}
	return nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
