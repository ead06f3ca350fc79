/*
Package runtime is the flow engine.

Engine.Start binds participants to roles and positions a session at the initial state.
Engine.Advance runs one state: it checks the preconditions, authorizes every action of the
state for its owner before any side effect, evaluates the AND/OR action tree through the
ProtocolExecutor under a per-action deadline, and moves the session along the transition
chosen by the outcome. Sessions are values: Advance returns a new one and never mutates its input.
*/
package runtime
