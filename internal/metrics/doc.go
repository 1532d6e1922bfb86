// Package metrics defines the Prometheus collectors for search, embedding
// and HTTP traffic. Collectors register with the default registry on init
// and are served at /metrics.
package metrics
