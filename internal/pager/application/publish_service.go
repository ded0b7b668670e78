package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"quake-pager/internal/audit"
	"quake-pager/internal/eventing"
	"quake-pager/internal/observability/metrics"
	"quake-pager/internal/pager/application/events"
	pager "quake-pager/internal/pager/domain"
)

// EventPublisher sends domain events after a version is stored.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// PublishService appends assembled versions to the event history and fans the
// fact out to subscribers.
type PublishService struct {
	store     pager.VersionStore
	publisher EventPublisher
	auditLog  audit.Logger
	logger    *log.Logger
}

// NewPublishService constructs a publish service. Publisher and audit logger
// are optional.
func NewPublishService(store pager.VersionStore, publisher EventPublisher, auditLog audit.Logger, logger *log.Logger) (*PublishService, error) {
	if store == nil {
		return nil, errors.New("pager: publish service requires a version store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PublishService{store: store, publisher: publisher, auditLog: auditLog, logger: logger}, nil
}

// Publish appends the version, assigns its number, and emits VersionPublished.
// A failed event emission or audit write never rolls back the append; the
// stored history is the source of truth.
func (s *PublishService) Publish(ctx context.Context, version *pager.Version) (*pager.Version, error) {
	if version == nil {
		return nil, errors.New("pager: nil version")
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.store.AppendVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	metrics.IncVersionPublished(stored.SummaryLevel.String())
	s.logger.Printf("pager: published version %d for event %s (summary=%s)",
		stored.Number, stored.EventCode, stored.SummaryLevel)

	if s.publisher != nil {
		event := events.VersionPublished{
			EventCode:     stored.EventCode,
			Number:        stored.Number,
			SummaryLevel:  stored.SummaryLevel.String(),
			FatalityLevel: stored.FatalityLevel.String(),
			EconomicLevel: stored.EconomicLevel.String(),
			Magnitude:     stored.Magnitude,
			MaxIntensity:  stored.MaxIntensity,
			OriginTime:    stored.OriginTime,
			OccurredAt:    stored.ProcessTime,
		}
		publishCtx := eventing.WithEventCode(ctx, stored.EventCode)
		if err := s.publisher.Publish(publishCtx, event); err != nil {
			s.logger.Printf("pager: version published event emit failed for %s v%d: %v",
				stored.EventCode, stored.Number, err)
		}
	}

	if s.auditLog != nil {
		metadata, _ := json.Marshal(map[string]any{
			"summary_level": stored.SummaryLevel.String(),
			"magnitude":     stored.Magnitude,
			"max_intensity": stored.MaxIntensity,
		})
		entry := audit.Entry{
			Actor:        "pipeline",
			Action:       "version.publish",
			ResourceType: "version",
			ResourceID:   stored.EventCode,
			EventCode:    stored.EventCode,
			Metadata:     metadata,
		}
		if err := s.auditLog.Log(ctx, entry); err != nil {
			s.logger.Printf("pager: audit write failed for %s v%d: %v", stored.EventCode, stored.Number, err)
		}
	}

	return stored, nil
}

// History returns the full ordered version history for an event.
func (s *PublishService) History(ctx context.Context, eventCode string) ([]pager.Version, error) {
	if eventCode == "" {
		return nil, errors.New("pager: empty event code")
	}
	return s.store.History(ctx, eventCode)
}

// Latest returns the most recent version for an event.
func (s *PublishService) Latest(ctx context.Context, eventCode string) (*pager.Version, error) {
	if eventCode == "" {
		return nil, errors.New("pager: empty event code")
	}
	return s.store.GetLatest(ctx, eventCode)
}

// Previous returns the version directly before the given number, or nil when
// the given number is the first.
func (s *PublishService) Previous(ctx context.Context, eventCode string, number int) (*pager.Version, error) {
	if number <= 1 {
		return nil, nil
	}
	history, err := s.store.History(ctx, eventCode)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].Number == number-1 {
			return &history[i], nil
		}
	}
	return nil, nil
}
