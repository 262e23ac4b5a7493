package api

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a resource not found error with contextual information.
// Lookups never return it; mutating operations on unknown ids do.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "controller service", "component")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	if err := provider.DisableControllerServiceByID(ctx, "pool-1"); api.IsNotFound(err) {
//	    // nothing to disable
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

var (
	// NewServiceNotFoundError creates a controller service not found error.
	NewServiceNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("controller service", id)
	}

	// NewComponentNotFoundError creates a referencing component not found error.
	NewComponentNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("component", id)
	}
)

// DuplicateIDError is returned when a controller service is created with an
// identifier that is already registered.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("controller service with id %s already exists", e.ID)
}

// IsDuplicateID reports whether err is or wraps a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var target *DuplicateIDError
	return errors.As(err, &target)
}

// UnknownTypeError is returned when the factory cannot resolve a type name.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown controller service type %q", e.TypeName)
}

// IsUnknownType reports whether err is or wraps an UnknownTypeError.
func IsUnknownType(err error) bool {
	var target *UnknownTypeError
	return errors.As(err, &target)
}

// NotMemberError is returned when a node handed to the provider was not
// created by it, or was already removed.
type NotMemberError struct {
	ID string
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("controller service %s is not part of this provider", e.ID)
}

// IsNotMember reports whether err is or wraps a NotMemberError.
func IsNotMember(err error) bool {
	var target *NotMemberError
	return errors.As(err, &target)
}

// InvalidStateError is returned when a transition is attempted from a state
// that forbids it. No state change has happened when it is returned.
type InvalidStateError struct {
	ID         string
	State      ServiceState
	Transition Transition
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s controller service %s: current state is %s", e.Transition, e.ID, e.State)
}

// IsInvalidState reports whether err is or wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// ActiveReferencesError lists the components that still actively use a
// service which is about to be disabled.
type ActiveReferencesError struct {
	ID     string
	Active []ComponentRef
}

func (e *ActiveReferencesError) Error() string {
	refs := make([]string, len(e.Active))
	for i, r := range e.Active {
		refs[i] = r.String()
	}
	return fmt.Sprintf("controller service %s is referenced by active components: %s", e.ID, strings.Join(refs, ", "))
}

// IsActiveReferences reports whether err is or wraps an ActiveReferencesError.
func IsActiveReferences(err error) bool {
	var target *ActiveReferencesError
	return errors.As(err, &target)
}

// CascadeOperation names the cascade that failed.
type CascadeOperation string

const (
	OperationActivate   CascadeOperation = "activate"
	OperationDeactivate CascadeOperation = "deactivate"
)

// CascadeError reports the first component a cascade failed on together
// with every component it had already changed. Nothing is rolled back.
type CascadeError struct {
	Operation CascadeOperation
	// Service is the controller service the cascade was started for.
	Service string
	Failed  ComponentRef
	Applied []ComponentRef
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s referencing components of %s: failed at %s after %d applied: %v",
		e.Operation, e.Service, e.Failed, len(e.Applied), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// IsActivationFailure reports whether err is or wraps a failed activation cascade.
func IsActivationFailure(err error) bool {
	var target *CascadeError
	return errors.As(err, &target) && target.Operation == OperationActivate
}

// IsDeactivationFailure reports whether err is or wraps a failed deactivation cascade.
func IsDeactivationFailure(err error) bool {
	var target *CascadeError
	return errors.As(err, &target) && target.Operation == OperationDeactivate
}

// CyclicReferenceWarning is emitted, not returned as an error, when a
// traversal reaches a component that is still on the current path.
type CyclicReferenceWarning struct {
	// From is the component whose edge closed the cycle.
	From string
	// To is the in-progress component the edge points back to.
	To string
}

func (w CyclicReferenceWarning) String() string {
	return fmt.Sprintf("cyclic reference between %s and %s", w.From, w.To)
}
