/*
Package domain contains the core domain models of the concierge orchestration engine.

It defines the graph of nodes, the capabilities a decision node may request, and the
Task State threaded through every run. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Node: a unit of execution in the graph (Decision, Effect, Entry or Exit adapter).
  - Capability: a named, allow-listed action a Decision node may request.
  - TaskState: the single record threaded through a run (history, profile, entity statuses, delegation stack).
  - EntityStatus: per-entity progress (found / registered / scheduled).
  - Outcome: what a run reports to its caller (completed, pending or failed).
*/
package domain
