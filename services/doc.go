// Package services exposes the auction engine over HTTP: signed request
// envelopes, the market API handlers, and the persistent event store.
package services
