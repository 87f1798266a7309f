// Package target defines the addressing model for notifications: the
// (channel, topic, event) triple and its matching rules.
//
// Channel and event always match by exact string equality. Topic is the only
// field with wildcard semantics, carried by two reserved tokens:
//
//   - "any"  matches every candidate topic, including an absent one
//   - "none" matches only an absent (empty) candidate topic
//
// Matching is case-sensitive and never trims input. Callers that want
// normalized identifiers must normalize before handing targets to this
// package.
package target
