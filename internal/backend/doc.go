// Package backend translates job-board operations into gateway requests.
//
// Every call takes the caller's session snapshot explicitly; a nil session
// makes an anonymous request. Errors from the gateway are wrapped with %w
// and keep their type.
package backend
