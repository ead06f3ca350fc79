/*
Package domain contains the data model of a machine-readable governance framework and the
runtime types of the governance interpreter.

The framework types (Participant, PermissionRule, Action, PrivilegeRule, FlowState) are pure
data: they are produced once by a loader, compiled by the governance package and never mutated
afterwards. Session and StepResult capture the per-execution state owned by a single flow
driver.

# Key Entities

  - Framework: the whole governance document (participants, roles, rules, actions, flows).
  - Predicate: a boolean tree (Any/All) over atomic conditions, shared by permissions and privileges.
  - ActionExpr: a Leaf/And/Or tree of protocol actions; Or branches may route to their own target.
  - Session: the mutable cursor of one flow execution (current state, bindings, connections, results).
  - Decision: an authorization verdict with the rules evaluated and why they did or did not match.
*/
package domain
