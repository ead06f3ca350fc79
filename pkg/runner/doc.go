/*
Package runner lets an operator carry out protocol actions by hand.

Runner implements ports.ProtocolExecutor by handing every invocation to an IOHandler and
returning the verdict it reads back. It is meant for rehearsing a framework's flows
before real agents are wired in, and for hosts that drive agents from a script.

# Key Components

  - Runner: the ports.ProtocolExecutor, honouring the engine's per-action deadline.
  - IOHandler: decouples how invocations are presented and verdicts collected.
  - TextHandler: an interactive prompt for terminals.
  - JSONHandler: NDJSON in and out, for scripted operators.

# Usage

	exec := runner.New(runner.NewTextHandler(os.Stdin, os.Stdout))
	it, err := charter.New("framework.json", charter.WithExecutor(exec))
*/
package runner
