// Package app provides the screen layer.
//
// Each screen operation reads the current session, consults the query cache
// and calls the backend services. It is the only component that references
// the session store, the cache and the services together.
package app
