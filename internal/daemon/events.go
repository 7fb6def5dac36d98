package daemon

import (
	"github.com/matheus3301/followtrack/internal/bus"
	"go.uber.org/zap"
)

// EventLog writes every bus event to the daemon log at debug level.
type EventLog struct {
	bus    *bus.Bus
	logger *zap.Logger
	unsub  func()
	done   chan struct{}
}

// NewEventLog creates a logger for every event published on b.
func NewEventLog(b *bus.Bus, logger *zap.Logger) *EventLog {
	return &EventLog{bus: b, logger: logger}
}

// Start subscribes to the bus and logs events at debug level.
func (l *EventLog) Start() {
	events, unsub := l.bus.Subscribe("", 64)
	l.unsub = unsub
	l.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-l.done:
				return
			case e := <-events:
				l.logger.Debug("event", zap.String("kind", e.Kind), zap.Time("at", e.Timestamp), zap.Any("payload", e.Payload))
			}
		}
	}()
}

// Stop unsubscribes and ends the log loop.
func (l *EventLog) Stop() {
	if l.unsub == nil {
		return
	}
	l.unsub()
	close(l.done)
	l.unsub = nil
}
