// Package recipient provides the recipient registry: identity and lifecycle
// for the people a project can notify.
//
// Recipient IDs are caller-supplied external identifiers, unique per project.
// The registry exposes CRUD plus a partial-failure batch create, and runs
// registered cascade hooks when a recipient is deleted so that dependent
// records (notifications, preference overrides) never outlive their owner.
//
// # Basic Usage
//
//	svc := recipient.NewService(recipient.NewMemoryStorage())
//	rec, err := svc.Create(ctx, projectID, recipient.CreateInput{ID: "user-42", Name: "Ada"})
//
// Storage is pluggable: a memory implementation ships for development and
// tests, and PostgresStorage persists through a pgx pool.
package recipient
