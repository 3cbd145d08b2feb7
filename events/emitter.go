package events

import (
	"sync"

	"medagent/logger"
)

// Observer is implemented by consumers interested in span events
type Observer interface {
	OnEvent(event Event)
}

// Emitter fans span events out to registered observers. It implements Sink
// so it can be handed directly to the trace handlers.
type Emitter struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEmitter creates a new event emitter
func NewEmitter() *Emitter {
	return &Emitter{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an event observer
func (e *Emitter) AddObserver(observer Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

// Emit sends an event to all observers in registration order
func (e *Emitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, observer := range e.observers {
		observer.OnEvent(event)
	}
}

// LogObserver writes each span event to a structured logger. ERROR-level
// events are logged at error severity, everything else at debug.
type LogObserver struct {
	Logger logger.Logger
}

func (o LogObserver) OnEvent(event Event) {
	if o.Logger == nil {
		return
	}
	if event.Level == LevelError {
		o.Logger.Error("span event", nil,
			logger.String("name", event.Name),
			logger.Any("metadata", event.Metadata))
		return
	}
	o.Logger.Debug("span event",
		logger.String("name", event.Name),
		logger.Any("metadata", event.Metadata))
}
