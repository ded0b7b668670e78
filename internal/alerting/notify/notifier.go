package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	alertapp "quake-pager/internal/alerting/application"
	alerting "quake-pager/internal/alerting/domain"
	"quake-pager/internal/observability/metrics"
	pager "quake-pager/internal/pager/domain"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders and sends notifications for a decision round. Delivery is
// at-most-once per subscriber and version; cooldown and dedupe windows guard
// against reprocessing storms.
type Notifier struct {
	channel      Channel
	template     *Template
	logger       *log.Logger
	clock        Clock
	mu           sync.Mutex
	sent         map[string]sendRecord
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// subscriber and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channel Channel, template *Template, logger *log.Logger, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("notify: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("", "")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	if logger == nil {
		logger = log.Default()
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		logger:   logger,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Deliver sends one notification per positive decision. Stale-skip rounds
// deliver nothing.
func (n *Notifier) Deliver(ctx context.Context, version *pager.Version, outcome alertapp.Outcome) {
	if n == nil || version == nil || outcome.Status != alertapp.StatusEvaluated {
		return
	}
	data := buildTemplateData(version)
	for _, decision := range outcome.Decisions {
		if !decision.Notify {
			continue
		}
		n.send(ctx, version, decision.Subscriber, data)
	}
}

func (n *Notifier) send(ctx context.Context, version *pager.Version, subscriber alerting.Subscriber, data TemplateData) {
	body, err := n.template.Render(subscriber.Format, data)
	if err != nil {
		n.logger.Printf("notify: render failed for %s: %v", subscriber.Address, err)
		metrics.IncNotification(n.channel.Name(), metrics.ResultError)
		return
	}
	if !n.shouldSend(version.EventCode, subscriber.ID, body) {
		return
	}
	msg := Message{
		Recipient: subscriber.Address,
		Subject:   fmt.Sprintf("PAGER %s alert, M%.1f %s", version.SummaryLevel, version.Magnitude, version.Location),
		Body:      body,
		EventCode: version.EventCode,
		Version:   version.Number,
	}
	if err := n.channel.Send(ctx, msg); err != nil {
		n.logger.Printf("notify: send to %s via %s failed: %v", subscriber.Address, n.channel.Name(), err)
		metrics.IncNotification(n.channel.Name(), metrics.ResultError)
		return
	}
	metrics.IncNotification(n.channel.Name(), metrics.ResultSuccess)
	n.markSent(version.EventCode, subscriber.ID, body)
}

func buildTemplateData(version *pager.Version) TemplateData {
	return TemplateData{
		EventCode:     version.EventCode,
		Version:       version.Number,
		Location:      version.Location,
		Magnitude:     fmt.Sprintf("%.1f", version.Magnitude),
		DepthKM:       fmt.Sprintf("%.1f", version.DepthKM),
		OriginTime:    version.OriginTime.UTC().Format(time.RFC3339),
		Elapsed:       version.Elapsed,
		SummaryLevel:  version.SummaryLevel.String(),
		FatalityLevel: version.FatalityLevel.String(),
		EconomicLevel: version.EconomicLevel.String(),
		MaxIntensity:  version.MaxIntensity,
		Impact1:       version.Comments.Impact1,
		Impact2:       version.Comments.Impact2,
	}
}

func (n *Notifier) shouldSend(eventCode, subscriberID, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(eventCode, subscriberID)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(eventCode, subscriberID, content string) {
	if n == nil {
		return
	}
	key := notificationKey(eventCode, subscriberID)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(eventCode, subscriberID string) string {
	return eventCode + "|" + subscriberID
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
