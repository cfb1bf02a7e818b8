// Package httpserver provides the shared HTTP server shell for haulbid
// services: routing, health and drain endpoints, request logging, optional
// pprof, and the metrics listener.
package httpserver
