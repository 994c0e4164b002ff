// Package transport provides the HTTP implementation of the sync engine's
// Sender capability.
package transport
