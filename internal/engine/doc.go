// Package engine implements the offline-first sync engine: a read-through
// TTL cache, typed domain record stores, a durable mutation queue with a
// sequential reconciliation loop, and a retention sweeper. The host
// application constructs one Engine, injects the network Sender, and signals
// connectivity changes via SetOnline.
package engine
