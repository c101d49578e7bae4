// Package httpserver serves the job board screens as JSON view models.
//
// Every page of the navigation table is registered once behind its route
// guard. Form submissions, live-update sockets and the health and metrics
// endpoints share the same middleware chain.
package httpserver
