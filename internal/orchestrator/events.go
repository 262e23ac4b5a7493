package orchestrator

import (
	"time"

	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// ServiceStateChangedEvent represents a controller service state change event.
type ServiceStateChangedEvent struct {
	ID        string
	Type      string
	OldState  services.ServiceState
	NewState  services.ServiceState
	Error     error
	Timestamp time.Time
}

// SubscribeToStateChanges returns a channel for state change events.
// Events are dropped for subscribers that do not keep up.
func (p *Provider) SubscribeToStateChanges() <-chan ServiceStateChangedEvent {
	eventChan := make(chan ServiceStateChangedEvent, 100)
	p.mu.Lock()
	p.stateChangeSubscribers = append(p.stateChangeSubscribers, eventChan)
	p.mu.Unlock()
	return eventChan
}

// publishStateChangeEvent publishes a state change event to all subscribers
func (p *Provider) publishStateChangeEvent(id string, oldState, newState services.ServiceState, err error) {
	logging.Debug("Provider", "Controller service %s state changed: %s -> %s", id, oldState, newState)

	typeName := ""
	if node, ok := p.registry.Get(id); ok {
		typeName = node.TypeName()
	}

	event := ServiceStateChangedEvent{
		ID:        id,
		Type:      typeName,
		OldState:  oldState,
		NewState:  newState,
		Error:     err,
		Timestamp: time.Now(),
	}

	p.mu.RLock()
	subscribers := make([]chan<- ServiceStateChangedEvent, len(p.stateChangeSubscribers))
	copy(subscribers, p.stateChangeSubscribers)
	p.mu.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Don't block if subscriber can't receive immediately
			logging.Debug("Provider", "Subscriber blocked, skipping event for controller service %s", id)
		}
	}
}
