// Package events implements the admin event bus: a bounded,
// multi-producer, multi-subscriber broadcast that the SSE endpoint
// and any other interested listener drain from.
package events

import (
	"sync"
	"time"
)

// Kind is one of the closed set of admin event kinds.
type Kind string

const (
	RebuildStarted       Kind = "rebuild-started"
	RebuildFinished      Kind = "rebuild-finished"
	RebuildFailed        Kind = "rebuild-failed"
	ProfilesChanged      Kind = "profiles-changed"
	CoreChanged          Kind = "core-changed"
	SettingsChanged      Kind = "settings-changed"
	DNSChanged           Kind = "dns-changed"
	FakeIPChanged        Kind = "fake-ip-changed"
	RulesChanged         Kind = "rules-changed"
	RuleProvidersChanged Kind = "rule-providers-changed"
	TunChanged           Kind = "tun-changed"
	WebDAVSynced         Kind = "webdav-synced"
)

// Event is one admin-facing notification.
type Event struct {
	Kind        Kind        `json:"kind"`
	Detail      interface{} `json:"detail,omitempty"`
	TimestampMS int64       `json:"timestamp_ms"`
}

const bufferSize = 64

// Subscription is a single subscriber's view of the bus. Close stops
// delivery and releases the subscriber slot.
type Subscription struct {
	ch   chan Event
	bus  *Bus
	once sync.Once
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// Bus fans out Publish calls to every live Subscription. A slow
// subscriber whose buffer is full silently drops the event rather
// than blocking the publisher; the feed is best-effort telemetry.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	now  func() time.Time
}

func New() *Bus {
	return &Bus{subs: map[*Subscription]struct{}{}, now: time.Now}
}

func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, bufferSize)}
	sub.bus = b
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish broadcasts kind/detail to every current subscriber.
func (b *Bus) Publish(kind Kind, detail interface{}) {
	ev := Event{Kind: kind, Detail: detail, TimestampMS: b.now().UnixMilli()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// buffer full: drop the event for this slow subscriber.
		}
	}
}

// SubscriberCount reports how many subscriptions are currently live.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
