package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// RouteMismatchError is returned when a set of requests does not map to a defined transition.
type RouteMismatchError struct {
	Node     string
	Requests []domain.Request
	Reason   string
}

func (e *RouteMismatchError) Error() string {
	names := make([]string, len(e.Requests))
	for i, r := range e.Requests {
		names[i] = r.Capability
	}
	return fmt.Sprintf("route mismatch at node '%s' for requests [%s]: %s", e.Node, strings.Join(names, ", "), e.Reason)
}

// RepeatedFailureError is returned when the same effect fails twice in a row with the same cause.
type RepeatedFailureError struct {
	Node       string
	Capability string
	Cause      string
}

func (e *RepeatedFailureError) Error() string {
	return fmt.Sprintf("effect '%s' failed twice in a row at node '%s': %s", e.Capability, e.Node, e.Cause)
}

// UnknownNodeError is returned when the next-node pointer names a node the graph does not define.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node '%s' is not defined in the graph", e.Node)
}

// CapabilityError is returned when a decision node requests a capability outside its allow-list.
type CapabilityError struct {
	Node       string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("node '%s' requested capability '%s': %v", e.Node, e.Capability, domain.ErrCapabilityNotAllowed)
}

func (e *CapabilityError) Unwrap() error { return domain.ErrCapabilityNotAllowed }
