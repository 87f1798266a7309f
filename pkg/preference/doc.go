// Package preference holds project-level default preferences and
// recipient-level overrides, and resolves the effective enabled state for a
// (recipient, target) pair.
//
// Resolution is layered. A recipient's explicit override for the exact
// target always wins. Failing that, the most specific matching project rule
// applies: a rule with an exact topic outranks an "any" fallback on the same
// channel and event, and among equally specific rules the most recently
// created one wins. When nothing matches, delivery defaults to enabled —
// recipients receive notifications unless a rule says otherwise.
//
// Resolution is a pure read; it never mutates stored rules.
package preference
