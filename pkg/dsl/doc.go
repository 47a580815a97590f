/*
Package dsl provides a Go DSL for programmatically constructing orchestration graphs.

It allows developers to define decision nodes, their capability allow-lists and
the adapters between contexts using a fluent builder, instead of filling
domain.Graph by hand. Build validates the result.

Example usage:

	b := dsl.New("primary")

	b.Decision("primary", "primary").
		Instructions("You help users find events. Time: {{.Time}}").
		Effect("search_events", "Search upcoming events", searchSchema, "events_tools").
		Delegate("to_registration", "Register the user for an event", regSchema, "enter_registration")

	b.Effect("events_tools")
	b.Entry("enter_registration", "registration")

	b.Decision("registration", "registration").
		Effect("register_for_event", "Fill the registration form", formSchema, "web_register").
		Complete("complete_registration", "Registration finished", reasonSchema, "back_to_primary")

	b.Effect("web_register").Gated()
	b.Exit("back_to_primary")

	graph, err := b.Build()
*/
package dsl
