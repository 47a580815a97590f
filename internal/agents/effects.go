package agents

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/registry"
)

// Services are the adapters serving the concierge effects.
// Nil services leave their capabilities unregistered.
type Services struct {
	Events    EventIndex
	Calendar  Calendar
	Registrar Registrar
}

// EventIndex serves search_events and get_event_details.
type EventIndex interface {
	Search(ctx context.Context, req domain.Request) (domain.EffectResult, error)
	Details(ctx context.Context, req domain.Request) (domain.EffectResult, error)
}

// Calendar serves the calendar capabilities.
type Calendar interface {
	Read(ctx context.Context, req domain.Request) (domain.EffectResult, error)
	Create(ctx context.Context, req domain.Request) (domain.EffectResult, error)
}

// Registrar serves register_for_event.
type Registrar interface {
	Register(ctx context.Context, req domain.Request) (domain.EffectResult, error)
}

// Register binds the services to their capabilities.
func Register(reg *registry.Registry, s Services) {
	if s.Events != nil {
		reg.RegisterFunc(CapSearchEvents, s.Events.Search)
		reg.RegisterFunc(CapEventDetails, s.Events.Details)
	}
	if s.Calendar != nil {
		reg.RegisterFunc(CapReadCalendar, s.Calendar.Read)
		reg.RegisterFunc(CapCreateCalendarEvent, s.Calendar.Create)
	}
	if s.Registrar != nil {
		reg.RegisterFunc(CapRegister, s.Registrar.Register)
	}
}

// Unbound lists the effect capabilities of g that have no effect, in node order.
func Unbound(g *domain.Graph, effects interface {
	Lookup(string) (ports.Effect, bool)
}) []string {
	var missing []string
	for _, name := range g.Names() {
		n := g.Nodes[name]
		for _, c := range n.Capabilities {
			if c.Kind != domain.KindEffect {
				continue
			}
			if _, ok := effects.Lookup(c.Name); !ok {
				missing = append(missing, c.Name)
			}
		}
	}
	return missing
}
