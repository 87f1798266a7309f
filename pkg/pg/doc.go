// Package pg wires PostgreSQL into the application: pooled connections with
// retry, goose-driven schema migrations, health checks, and error
// classification helpers shared by the storage implementations.
package pg
