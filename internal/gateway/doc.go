// Package gateway issues REST calls against the job-board backend.
//
// The gateway attaches the bearer token carried by each request, surfaces
// failures as TransportError (no response) or HTTPError (4xx/5xx), and never
// touches the session itself. Idempotent GETs are retried on transport
// errors, 429 and 5xx; all calls pass a client-side rate limiter and a
// circuit breaker that opens on repeated transport errors and 5xx responses.
package gateway
