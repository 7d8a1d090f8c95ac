// Package server implements the HTTP server using Echo framework.
//
// Routes: auth (OAuth), dataset pages (listing + editor), health/version/metrics.
// Handlers split by domain: handlers_auth.go, handlers_datasets.go, handlers_health.go.
package server
