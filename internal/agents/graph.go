// Package agents defines the concierge orchestration graph and binds its
// capabilities to the adapters serving them.
package agents

import (
	"github.com/aretw0/concierge/pkg/adapters/browser"
	"github.com/aretw0/concierge/pkg/adapters/gcal"
	"github.com/aretw0/concierge/pkg/adapters/opensearch"
	"github.com/aretw0/concierge/pkg/args"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/dsl"
)

// Contexts.
const (
	ContextPrimary      = "primary"
	ContextEvents       = "events-search"
	ContextRegistration = "web-registration"
)

// Nodes.
const (
	NodePrimary           = "primary"
	NodePrimaryTools      = "primary_tools"
	NodeEnterEvents       = "enter_events"
	NodeEvents            = "events"
	NodeEventsTools       = "events_tools"
	NodeEnterRegistration = "enter_registration"
	NodeRegistration      = "registration"
	NodeWebRegister       = "web_register"
	NodeBackToPrimary     = "back_to_primary"
)

// Capabilities.
const (
	CapReadCalendar         = "get_calendar_events"
	CapCreateCalendarEvent  = "create_calendar_event"
	CapToEvents             = "to_events_assistant"
	CapToRegistration       = "to_registration"
	CapSearchEvents         = "search_events"
	CapEventDetails         = "get_event_details"
	CapCompleteEvents       = "complete_events_task"
	CapEscalateEvents       = "escalate_events_task"
	CapRegister             = "register_for_event"
	CapCompleteRegistration = "complete_registration"
	CapEscalateRegistration = "escalate_registration"
)

// EventsTask is the delegation request for the events assistant.
type EventsTask struct {
	EventName string `json:"event_name,omitempty" jsonschema:"description=The name or topic of the event the user is looking for"`
	EventDate string `json:"event_date,omitempty" jsonschema:"description=The date or period of interest"`
	Location  string `json:"location,omitempty" jsonschema:"description=The location of the event"`
	Request   string `json:"request" validate:"required" jsonschema:"description=What the user wants to know about events"`
}

// RegistrationTask is the delegation request for the registration supervisor.
type RegistrationTask struct {
	URL     string `json:"url" validate:"required,url" jsonschema:"description=The URL of the event page"`
	Request string `json:"request,omitempty" jsonschema:"description=Follow-up details the browser agent should take into account"`
}

// Signal is the argument of completion and escalation capabilities.
type Signal struct {
	Reason string `json:"reason" jsonschema:"description=Why control returns to the primary assistant"`
}

// Graph builds the concierge graph:
//
//	primary --calendar tools--> primary_tools
//	primary --to_events_assistant--> enter_events --> events --search/details--> events_tools
//	primary --to_registration--> enter_registration --> registration --register_for_event--> web_register (gated)
//	events, registration --complete/escalate--> back_to_primary
func Graph() (*domain.Graph, error) {
	b := dsl.New(ContextPrimary)

	b.Decision(NodePrimary, ContextPrimary).
		Describe("Primary event planning assistant").
		Instructions(primaryInstructions).
		Effect(CapReadCalendar, "Read the user's calendar events in a time window.", args.Schema(gcal.ReadArgs{}), NodePrimaryTools).
		Effect(CapCreateCalendarEvent, "Add an event to the user's calendar.", args.Schema(gcal.CreateArgs{}), NodePrimaryTools).
		Delegate(CapToEvents, "Transfers work to a specialized assistant to search for events.", args.Schema(EventsTask{}), NodeEnterEvents).
		Delegate(CapToRegistration, "Transfers work to a specialized assistant to register the user for an event.", args.Schema(RegistrationTask{}), NodeEnterRegistration)
	b.Effect(NodePrimaryTools).Describe("Calendar tools")

	b.Entry(NodeEnterEvents, ContextEvents).Handoff(eventsHandoff)
	b.Decision(NodeEvents, ContextEvents).
		Describe("Events search assistant").
		Instructions(eventsInstructions).
		Effect(CapSearchEvents, "Search upcoming events.", args.Schema(opensearch.SearchArgs{}), NodeEventsTools).
		Effect(CapEventDetails, "Fetch the details of an event by URL.", args.Schema(opensearch.DetailsArgs{}), NodeEventsTools).
		Complete(CapCompleteEvents, "Signal that the events task is completed.", args.Schema(Signal{}), NodeBackToPrimary).
		Escalate(CapEscalateEvents, "Return control to the primary assistant without completing the task.", args.Schema(Signal{}), NodeBackToPrimary).
		Parallel()
	b.Effect(NodeEventsTools).Describe("Event index tools")

	b.Entry(NodeEnterRegistration, ContextRegistration).Handoff(registrationHandoff)
	b.Decision(NodeRegistration, ContextRegistration).
		Describe("Web registration supervisor").
		Instructions(registrationInstructions).
		Effect(CapRegister, "Register the user for the event in a browser.", args.Schema(browser.RegisterArgs{}), NodeWebRegister).
		Complete(CapCompleteRegistration, "Signal that the registration is done.", args.Schema(Signal{}), NodeBackToPrimary).
		Escalate(CapEscalateRegistration, "Return control to the primary assistant, for example when the user must log in.", args.Schema(Signal{}), NodeBackToPrimary)
	b.Effect(NodeWebRegister).Describe("Browser registration").Gated()

	b.Exit(NodeBackToPrimary)

	return b.Build()
}
