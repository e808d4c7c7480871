package twon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultLogChannelDuration is how long the device keeps an idle channel
const DefaultLogChannelDuration = 90 * time.Second

// LogSubscription is an open subscribe-then-pull log channel
type LogSubscription struct {
	ID     int64
	Events []string

	device *Device

	mu     sync.Mutex
	closed bool
}

// SubscribeLog opens a log channel for events, or for every event the
// device supports when none are given. Each event must appear in the
// snapshot's log capabilities.
func (d *Device) SubscribeLog(ctx context.Context, events ...string) (*LogSubscription, error) {
	if err := d.requireReady(); err != nil {
		return nil, err
	}

	data := d.snapshot()
	for _, event := range events {
		if !data.SupportsLogEvent(event) {
			return nil, newDomainError(ErrUnsupportedEvent, event)
		}
	}

	id, err := d.client.LogSubscribe(ctx, events, DefaultLogChannelDuration)
	if err != nil {
		return nil, d.track(err)
	}

	d.logger.Debug("log channel opened", zap.Int64("channel", id), zap.Strings("events", events))
	return &LogSubscription{
		ID:     id,
		Events: append([]string(nil), events...),
		device: d,
	}, nil
}

// Pull waits up to wait for events and returns what arrived, possibly none
func (s *LogSubscription) Pull(ctx context.Context, wait time.Duration) ([]LogEvent, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, NewValidationError("log channel is closed")
	}

	events, err := s.device.client.LogPull(ctx, s.ID, wait)
	if err != nil {
		return nil, s.device.track(err)
	}
	return events, nil
}

// Close unsubscribes the channel. Calling it again is a no-op.
func (s *LogSubscription) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.device.client.LogUnsubscribe(ctx, s.ID); err != nil {
		return s.device.track(err)
	}
	s.device.logger.Debug("log channel closed", zap.Int64("channel", s.ID))
	return nil
}
