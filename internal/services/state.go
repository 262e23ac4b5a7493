package services

import "svcctl/internal/api"

// validTransitions is the controller service state machine. Keys are source
// states, values the states they may move to.
//
//	DISABLED  → ENABLING
//	ENABLING  → ENABLED, DISABLED   (DISABLED when the enabled hook fails)
//	ENABLED   → DISABLING
//	DISABLING → DISABLED
var validTransitions = map[ServiceState][]ServiceState{
	StateDisabled:  {StateEnabling},
	StateEnabling:  {StateEnabled, StateDisabled},
	StateEnabled:   {StateDisabling},
	StateDisabling: {StateDisabled},
}

// ValidTransition reports whether moving from one state to another is
// allowed. Same-state transitions are always rejected.
func ValidTransition(from, to ServiceState) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// transitionTarget is the intermediate state each operation moves into.
var transitionTarget = map[api.Transition]ServiceState{
	api.TransitionEnable:  StateEnabling,
	api.TransitionDisable: StateDisabling,
}

// CanTransition reports whether op may start from state. Removal is only
// legal from DISABLED.
func CanTransition(state ServiceState, op api.Transition) bool {
	if op == api.TransitionRemove {
		return state == StateDisabled
	}
	target, ok := transitionTarget[op]
	if !ok {
		return false
	}
	return ValidTransition(state, target)
}
