// Package store provides persistence for the guildpost sync engine: the
// response cache, the durable sync queue, and the typed domain record tables,
// backed by SQLite with an in-memory mock for tests.
package store
