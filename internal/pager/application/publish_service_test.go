package application

import (
	"context"
	"log"
	"testing"
	"time"

	"quake-pager/internal/audit"
	"quake-pager/internal/pager/application/events"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/pager/infrastructure/memory"
)

type capturingPublisher struct {
	published []any
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, event any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

type capturingAudit struct {
	entries []audit.Entry
}

func (a *capturingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func publishableVersion() *pager.Version {
	return &pager.Version{
		EventCode:     "us2024abcd",
		OriginTime:    time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC),
		ProcessTime:   time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC),
		Magnitude:     7.1,
		SummaryLevel:  pager.LevelOrange,
		FatalityLevel: pager.LevelOrange,
		EconomicLevel: pager.LevelYellow,
		MaxIntensity:  8,
	}
}

func TestPublishService_AssignsNumberAndEmitsEvent(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	auditLog := &capturingAudit{}
	service, err := NewPublishService(store, publisher, auditLog, log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	stored, err := service.Publish(context.Background(), publishableVersion())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if stored.Number != 1 {
		t.Fatalf("stored number = %d, want 1", stored.Number)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.published))
	}
	event, ok := publisher.published[0].(events.VersionPublished)
	if !ok {
		t.Fatalf("published payload type %T", publisher.published[0])
	}
	if event.EventCode != "us2024abcd" || event.Number != 1 || event.SummaryLevel != "orange" {
		t.Fatalf("event = %+v", event)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "version.publish" {
		t.Fatalf("audit entries = %+v", auditLog.entries)
	}
}

func TestPublishService_EmitFailureDoesNotRollBack(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{err: context.DeadlineExceeded}
	service, err := NewPublishService(store, publisher, nil, log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	stored, err := service.Publish(context.Background(), publishableVersion())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	latest, err := store.GetLatest(context.Background(), stored.EventCode)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Number != 1 {
		t.Fatalf("latest number = %d, want 1", latest.Number)
	}
}

func TestPublishService_PreviousVersionLookup(t *testing.T) {
	store := memory.NewStore()
	service, err := NewPublishService(store, nil, nil, log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	first, err := service.Publish(ctx, publishableVersion())
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second, err := service.Publish(ctx, publishableVersion())
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}

	previous, err := service.Previous(ctx, second.EventCode, second.Number)
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if previous == nil || previous.Number != first.Number {
		t.Fatalf("previous = %+v, want version %d", previous, first.Number)
	}

	none, err := service.Previous(ctx, first.EventCode, first.Number)
	if err != nil {
		t.Fatalf("previous of first: %v", err)
	}
	if none != nil {
		t.Fatalf("previous of first = %+v, want nil", none)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
