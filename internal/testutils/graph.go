package testutils

import (
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/dsl"
)

// Graph returns a small two-level graph:
//
//	primary --search_events/get_calendar_events/create_calendar_event--> tools
//	primary --to_registration--> enter_registration --> registration
//	registration --register_for_event--> web_register (gated)
//	registration --complete_registration/cancel_registration--> back_to_primary
func Graph() *domain.Graph {
	b := dsl.New("primary")

	b.Decision("primary", "primary").
		Instructions("Primary assistant. User: {{.UserInfo.name}}. Now: {{.Time}}").
		Effect("search_events", "Search events", dsl.Object(map[string]string{"query": "terms"}), "tools").
		Effect("get_calendar_events", "Read calendar", nil, "tools").
		Effect("create_calendar_event", "Create calendar event", nil, "tools").
		Delegate("to_registration", "Register for an event", dsl.Object(map[string]string{"url": "event url"}, "url"), "enter_registration")
	b.Effect("tools")

	b.Entry("enter_registration", "registration").
		Handoff("Registration requested for {{.Args.url}}.")
	b.Decision("registration", "registration").
		Instructions("Registration supervisor.").
		Effect("register_for_event", "Register in the browser", nil, "web_register").
		Complete("complete_registration", "Done", nil, "back_to_primary").
		Escalate("cancel_registration", "Give up", nil, "back_to_primary")
	b.Effect("web_register").Gated()
	b.Exit("back_to_primary")

	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
