// Package server exposes a tplguard runtime over HTTP.
//
// Routes:
//
//	PUT  /v1/components/{name}          register a component schema
//	GET  /v1/components                 list component names
//	GET  /v1/components/{name}          describe a component
//	POST /v1/templates                  compile a batch of template entities
//	GET  /v1/templates                  describe compiled templates
//	GET  /v1/templates/{name}           describe one compiled template
//	POST /v1/templates/{name}/render    render with the request body as context
//	GET  /health, /ready, /metrics
//
// Request bodies are decoded by Content-Type: JSON (the default), JSONC,
// YAML, or CBOR. Template names containing a slash must be escaped (%2F).
//
// API routes pass through request ID, panic recovery, rate limiting, logging,
// and Prometheus instrumentation middleware.
package server
