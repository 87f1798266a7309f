// Package redis connects the application to Redis: retrying connect, config
// from the environment, and a health probe. The quota package keeps its
// distributed usage counters on the client this package hands out.
package redis
