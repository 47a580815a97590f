/*
Package concierge is an agent orchestration engine for an event concierge.

A run starts from a user request and moves through a graph of nodes: decision
nodes ask a language model what to do next, effect nodes call external
services (event search, calendar, browser registration), and entry and exit
adapters delegate work to specialised assistants and hand control back.
Every node completion is checkpointed, so a run can pause before a gated node,
wait for human approval and resume exactly where it stopped.

# Usage

	graph, _ := agents.Graph()
	eng, err := concierge.New(graph, decider, effects, store,
		concierge.WithProfileSource(profile.NewFile("profile.yaml")),
	)
	if err != nil {
		log.Fatal(err)
	}

	out, err := eng.Start(ctx, "Register me for the next Go meetup")
	for err == nil && out.Kind == domain.OutcomePending {
		out, err = eng.Resume(ctx, out.RunID, domain.Approval{Approved: true})
	}

The outcome is completed(text), pending(node) or failed(reason).
*/
package concierge
