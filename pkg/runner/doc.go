/*
Package runner drives a concierge run from a terminal or a pipe.

The runner starts a run, asks an ApprovalPolicy whenever the run pauses
before a gated node, presents final answers and, in conversational mode, feeds
follow-up messages back into the completed run.

# Key Components

  - Runner: the loop over Start, Resume and Continue.
  - IOHandler: decouples how answers are shown and input is read.
  - TextHandler: interactive CLI usage with optional markdown rendering.
  - JSONHandler: JSON-Lines for scripting and process integration.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithConversation(true),
	)

	out, err := r.Run(ctx, engine, "Find me a jazz concert this weekend")
*/
package runner
