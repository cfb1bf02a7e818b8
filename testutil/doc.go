// Package testutil provides fixtures for exercising the auction engine in
// tests: a controllable clock, pre-registered market participants, and
// helpers that drive the mock oracle's reveal round-trip.
package testutil
