// Package delivery implements the notification and broadcast engine: it
// accepts send requests, applies preference filtering and quota admission,
// persists notification records, and drives their delivery state machine.
//
// A send is either direct (one recipient) or a broadcast (fanned out to
// every recipient of the project). Each fanned-out admission is independent:
// one recipient being muted or over quota never aborts the others. Every
// notification moves through
//
//	enqueued -> delivered | muted | quota_exceeded | failed
//
// and is completed once its terminal outcome is recorded. A broadcast is
// "delivering" until every child admission has resolved, then its
// CompletedAt is stamped.
//
// Admission-policy outcomes (muted, quota exceeded) are business results
// recorded on the notification row, not errors: Send only fails on request
// shape problems or systemic storage/registry failures.
package delivery
