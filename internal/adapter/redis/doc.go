// Package redis persists the client's bearer token in Redis so that several
// screen-server processes on one host can share a single login.
package redis
