// Package cmd provides CLI commands for haulbid services.
//
// # Commands
//
// marketd: Runs the confidential freight auction daemon, exposing the
// market API, health endpoints, and the Prometheus metrics listener.
//
//	go run ./cmd/marketd --config=marketd.yaml
//	go run ./cmd/marketd --addr=:8080 --dev
//
// # Configuration
//
// All commands support YAML configuration files via the --config flag.
// Command-line flags override config file values.
//
// Example config for marketd:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	log_json: true
//	market:
//	  admin: "<hex account>"
//	  pauser: "<hex account>"
//	  oracle: "<hex account>"
//	postgres:
//	  host: localhost
//	  port: 5432
//	  user: haulbid
//	  database: haulbid
//
// # Dev Mode
//
// With --dev the daemon runs its own in-process decryption oracle and
// exposes POST /api/v1/dev/encrypt so local clients can seal values without
// client-side encryption tooling. Reveal requests resolve within a second.
package cmd
