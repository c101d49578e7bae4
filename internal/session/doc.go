// Package session owns the authenticated identity of the running client.
//
// Store is the single authoritative holder of the current Session and of the
// persisted bearer token. It keeps the invariant that a session exists if and
// only if a token is persisted, re-hydrates the session from storage at
// startup, and notifies listeners when the session is torn down.
package session
