/*
Package ports defines the driven ports (interfaces) of the concierge engine.

These interfaces decouple the orchestration core from the language model, the
external services and the storage backends.

# Key Interfaces

  - Decider: the opaque language-model call behind every decision node.
  - Effect: one external side-effecting operation (search, calendar, registration).
  - ProfileSource: loads the user profile once per run.
  - StateStore: persists and loads run checkpoints.
  - RunLocker: serializes steps of one run across replicas.
*/
package ports
