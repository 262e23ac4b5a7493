package api

// ServiceState is the lifecycle state of a controller service.
type ServiceState string

const (
	StateDisabled  ServiceState = "DISABLED"
	StateEnabling  ServiceState = "ENABLING"
	StateEnabled   ServiceState = "ENABLED"
	StateDisabling ServiceState = "DISABLING"
)

// String makes ServiceState satisfy fmt.Stringer.
func (s ServiceState) String() string {
	return string(s)
}

// Valid reports whether s is one of the four lifecycle states.
func (s ServiceState) Valid() bool {
	switch s {
	case StateDisabled, StateEnabling, StateEnabled, StateDisabling:
		return true
	default:
		return false
	}
}

// IsTransitional reports whether a transition is in flight.
func (s ServiceState) IsTransitional() bool {
	return s == StateEnabling || s == StateDisabling
}

// Transition names an attempted state machine operation.
type Transition string

const (
	TransitionEnable  Transition = "enable"
	TransitionDisable Transition = "disable"
	TransitionRemove  Transition = "remove"
)

// ComponentKind categorises anything that can reference a controller service.
type ComponentKind string

const (
	KindProcessor         ComponentKind = "processor"
	KindReportingTask     ComponentKind = "reporting-task"
	KindControllerService ComponentKind = "controller-service"
)

// Valid reports whether k is a known component kind.
func (k ComponentKind) Valid() bool {
	switch k {
	case KindProcessor, KindReportingTask, KindControllerService:
		return true
	default:
		return false
	}
}

// ComponentRef identifies a component touched by a cascade.
type ComponentRef struct {
	ID   string        `json:"id" yaml:"id"`
	Kind ComponentKind `json:"kind" yaml:"kind"`
}

func (r ComponentRef) String() string {
	return string(r.Kind) + ":" + r.ID
}
