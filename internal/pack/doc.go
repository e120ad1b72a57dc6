// Package pack implements the Context Packer (spec.md 4.8): a
// deterministic, budget-bounded fold over a Planner result set that
// produces the `context` block of the response envelope. It owns no
// persistent state.
package pack
